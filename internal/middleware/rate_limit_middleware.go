// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"crm-service/internal/pkg/metrics"
	"crm-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IntakeLimiter counts submissions per client address.
type IntakeLimiter interface {
	CheckIntakeSubmission(ctx context.Context, ip string, max int64, window time.Duration) (bool, error)
}

// IntakeRateLimit caps public lead submissions per IP. A limiter outage
// lets the request through.
func IntakeRateLimit(limiter IntakeLimiter, max int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max <= 0 {
			c.Next()
			return
		}

		allowed, err := limiter.CheckIntakeSubmission(c.Request.Context(), c.ClientIP(), max, window)
		if err != nil {
			logger.Warn("intake rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if allowed {
			c.Next()
			return
		}

		metrics.RecordIntakeRejected("rate_limited")
		c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
		if WantsJSON(c) {
			response.Error(c, http.StatusTooManyRequests, "Too many submissions, please try again later.", nil)
			return
		}
		c.Abort()
		c.String(http.StatusTooManyRequests, "Too many submissions, please try again later.")
	}
}
