package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctf-event-service/internal/service"
)

type EventHandler struct {
	Service *service.EventService
}

func NewEventHandler(s *service.EventService) *EventHandler {
	return &EventHandler{Service: s}
}

func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.Service.ListEvents(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) ActiveEvents(c *gin.Context) {
	events, err := h.Service.ActiveEvents(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	ev, err := h.Service.GetEvent(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// PlayEvent serves the participant view of the snapshot: hidden categories
// filtered out, answers and solutions stripped.
func (h *EventHandler) PlayEvent(c *gin.Context) {
	ev, err := h.Service.ParticipantView(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	var input service.EventCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := h.Service.CreateEvent(c.Request.Context(), input, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *EventHandler) UpdateEvent(c *gin.Context) {
	var input service.EventUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := h.Service.UpdateEvent(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) DeleteEvent(c *gin.Context) {
	if err := h.Service.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *EventHandler) JoinEvent(c *gin.Context) {
	var body struct {
		EventCode string `json:"event_code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := h.Service.JoinEvent(c.Request.Context(), body.EventCode, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "joined", "event_id": ev.ID, "name": ev.Name})
}

func (h *EventHandler) Participants(c *gin.Context) {
	participants, err := h.Service.Participants(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, participants)
}

func (h *EventHandler) Leaderboard(c *gin.Context) {
	entries, err := h.Service.Leaderboard(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *EventHandler) SetCategoryVisibility(c *gin.Context) {
	var body struct {
		IsVisible *bool `json:"is_visible"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.IsVisible == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_visible is required"})
		return
	}
	err := h.Service.SetCategoryVisibility(c.Request.Context(), c.Param("id"), c.Param("categoryName"), *body.IsVisible)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (h *EventHandler) OverrideAnswer(c *gin.Context) {
	var body struct {
		Answer string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.Service.OverrideAnswer(c.Request.Context(), c.Param("id"), c.Param("questionId"), body.Answer)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "answer updated"})
}
