package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctf-event-service/internal/service"
)

type AnswerHandler struct {
	Service *service.AnswerService
}

func NewAnswerHandler(s *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{Service: s}
}

func (h *AnswerHandler) SubmitAnswer(c *gin.Context) {
	var req service.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ident := identity(c)
	result, err := h.Service.SubmitAnswer(c.Request.Context(), c.Param("id"), ident.UserID, c.Param("questionId"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RequestHint discloses the stored hint text and logs the disclosure, so the
// penalty applies on the next correct submission regardless of what the
// client later claims.
func (h *AnswerHandler) RequestHint(c *gin.Context) {
	ident := identity(c)
	text, err := h.Service.RequestHint(c.Request.Context(), c.Param("id"), ident.UserID, c.Param("questionId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hint": text})
}

func (h *AnswerHandler) ListAnswers(c *gin.Context) {
	ident := identity(c)
	records, err := h.Service.ListAnswers(c.Request.Context(), c.Param("id"), ident.UserID, ident.IsAdmin())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
