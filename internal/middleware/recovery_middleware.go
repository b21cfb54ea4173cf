// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"crm-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500. Browser pages get a
// plain body, API callers the JSON envelope.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			identityID, _ := GetIdentityID(c)
			logger.Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Int64("identity_id", identityID),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			if !WantsJSON(c) && c.GetHeader("Accept") != "" {
				c.String(http.StatusInternalServerError, "Something went wrong. Please try again later.")
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}()
		c.Next()
	}
}
