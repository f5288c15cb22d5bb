package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"careercatalyst-backend/internal/server/respond"
)

const profileIDKey = "profileId"

// Profile resolves the caller's profile from the X-Profile-Id header. Every
// session route requires one; requests without it are rejected before any
// handler runs.
func Profile() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Profile-Id"))
		if id == "" {
			respond.Error(c, http.StatusBadRequest, "missing_profile", "X-Profile-Id header is required", nil)
			return
		}
		c.Set(profileIDKey, id)
		c.Next()
	}
}

// ProfileIDFromContext fetches the profile ID stored by Profile middleware.
func ProfileIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(profileIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
