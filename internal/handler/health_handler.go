package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the backing stores are reachable.
type HealthHandler struct {
	ping func(ctx context.Context) error
	log  zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. ping checks every dependency.
func NewHealthHandler(ping func(ctx context.Context) error, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		ping: ping,
		log:  log.With().Str("component", "health_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Health check failed")
		response.FailWithMessage(c, http.StatusServiceUnavailable, response.ErrInternal, "A backing store is unreachable.")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}
