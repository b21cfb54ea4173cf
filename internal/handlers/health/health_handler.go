// internal/handlers/health/health_handler.go
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const checkTimeout = 2 * time.Second

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	version string
	logger  *zap.Logger
}

func NewHealthHandler(version string, checks map[string]Check, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, version: version, logger: logger}
}

// Health reports 200 when every dependency answers and 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"version": h.version,
		"checks":  results,
	})
}
