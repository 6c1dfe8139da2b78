package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctf-event-service/internal/service"
)

type QuestionSetHandler struct {
	Service *service.QuestionSetService
}

func NewQuestionSetHandler(s *service.QuestionSetService) *QuestionSetHandler {
	return &QuestionSetHandler{Service: s}
}

func (h *QuestionSetHandler) ListQuestionSets(c *gin.Context) {
	sets, err := h.Service.ListQuestionSets(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sets)
}

func (h *QuestionSetHandler) GetQuestionSet(c *gin.Context) {
	set, err := h.Service.GetQuestionSet(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *QuestionSetHandler) CreateQuestionSet(c *gin.Context) {
	var input service.QuestionSetCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	set, err := h.Service.CreateQuestionSet(c.Request.Context(), input, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, set)
}

func (h *QuestionSetHandler) UpdateQuestionSet(c *gin.Context) {
	var input service.QuestionSetUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Service.UpdateQuestionSet(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated", "propagation": result})
}

func (h *QuestionSetHandler) DeleteQuestionSet(c *gin.Context) {
	if err := h.Service.DeleteQuestionSet(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
