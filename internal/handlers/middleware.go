package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctf-event-service/internal/service"
)

const identityKey = "identity"

// IdentityMiddleware extracts the authenticated caller from the gateway
// headers. Authentication itself happens upstream; missing identity is a 401.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "MISSING_USER_ID",
			})
			c.Abort()
			return
		}
		c.Set(identityKey, service.Identity{
			UserID:       userID,
			Email:        c.GetHeader("X-User-Email"),
			DisplayName:  c.GetHeader("X-User-Name"),
			FirstName:    c.GetHeader("X-User-First-Name"),
			LastName:     c.GetHeader("X-User-Last-Name"),
			Organization: c.GetHeader("X-User-Org"),
			Role:         c.GetHeader("X-User-Role"),
		})
		c.Next()
	}
}

// RequireAdmin rejects non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) service.Identity {
	if v, ok := c.Get(identityKey); ok {
		if ident, ok := v.(service.Identity); ok {
			return ident
		}
	}
	return service.Identity{}
}
