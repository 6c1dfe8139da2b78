package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ctf-event-service/internal/apperr"
)

// fail maps a service error to its HTTP status. Validation errors carry
// field-level detail.
func fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	body := gin.H{"error": err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	c.JSON(status, body)
}
