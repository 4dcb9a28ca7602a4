package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness probe
type HealthHandler struct {
	BaseHandler
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. A nil db is always healthy.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// Health serves GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, dto.Response{
				Success: false,
				Data:    gin.H{"status": "unhealthy"},
				Error:   &dto.ErrorInfo{Code: dto.ErrCodeUnavailable, Message: "database unreachable"},
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
