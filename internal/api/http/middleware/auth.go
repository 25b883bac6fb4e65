package middleware

import (
	"log/slog"
	"net/http"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
	"github.com/EternisAI/silo-license/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"
)

// APIKeyAuth guards administrative routes. configured is either the plaintext
// key or its bcrypt hash. An empty value leaves the routes open.
func APIKeyAuth(configured string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if configured == "" {
			c.Next()
			return
		}

		providedKey := c.GetHeader(apiKeyHeader)
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Detail: "Missing API key",
			})
			return
		}

		if !auth.CheckAPIKey(providedKey, configured) {
			slog.Warn("Invalid API key attempt",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Detail: "Invalid API key",
			})
			return
		}

		c.Next()
	}
}
