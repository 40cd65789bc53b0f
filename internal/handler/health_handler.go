package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tixgate/tixgate/pkg/database"
	redisclient "github.com/tixgate/tixgate/pkg/redis"
)

// HealthHandler handles liveness and readiness checks
type HealthHandler struct {
	db          *database.PostgresDB
	redis       *redisclient.Client
	serviceName string
	version     string
	startedAt   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.PostgresDB, redis *redisclient.Client, serviceName, version string) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redis:       redis,
		serviceName: serviceName,
		version:     version,
		startedAt:   time.Now(),
	}
}

// Health handles GET /health. Liveness only: the process is up.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.serviceName,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).String(),
	})
}

// Ready handles GET /ready. Checks the seat ledger and rank store.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{}
	healthy := true

	if err := h.db.HealthCheck(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.redis.HealthCheck(ctx); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}
