package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const DefaultHeader = "X-API-Key"

// APIKeyMiddleware accepts requests carrying any of keys in header.
// With no keys configured, authentication is disabled.
func APIKeyMiddleware(header string, keys []string) gin.HandlerFunc {
	if header == "" {
		header = DefaultHeader
	}
	var accepted [][]byte
	for _, k := range keys {
		if k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(accepted) == 0 {
			c.Next()
			return
		}

		provided := c.GetHeader(header)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if !matchAny([]byte(provided), accepted) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// matchAny compares against every key so timing does not reveal which one matched.
func matchAny(provided []byte, keys [][]byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(provided, k)
	}
	return found == 1
}
