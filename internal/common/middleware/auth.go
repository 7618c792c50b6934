package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tachyonedu/practice-engine/internal/common/errors"
)

// StudentRequired checks for a valid session cookie or bearer token and
// places the student id in the request context. Full credential validation
// lives in the institute's auth service; this layer only carries identity.
func StudentRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for session cookie first
		session, err := c.Cookie("session_id")
		if err == nil && session != "" {
			c.Set("student_id", session)
			c.Next()
			return
		}

		// Check for JWT token in Authorization header
		token := c.GetHeader("Authorization")
		if token != "" {
			c.Set("student_id", token)
			c.Next()
			return
		}

		appErr := errors.Unauthorized("missing or invalid authentication")
		c.JSON(appErr.Status, appErr)
		c.Abort()
	}
}
