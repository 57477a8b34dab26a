// Package auth guards the versioned API surface with a static key carried in
// the X-API-Key request header.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "X-API-Key"

// RequireKey returns middleware that rejects requests whose X-API-Key header
// does not match key. An empty key disables the check, which is the
// local-development default. The comparison is constant-time.
func RequireKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		got := c.GetHeader(apiKeyHeader)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "api key rejected"})
			return
		}

		c.Next()
	}
}
