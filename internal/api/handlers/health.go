package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/confpool/confidence-pool/internal/services"
	"github.com/confpool/confidence-pool/pkg/database"
)

type HealthHandler struct {
	db        *database.DB
	cache     *services.CacheService
	scheduler *services.LiveWindowScheduler
}

func NewHealthHandler(db *database.DB, cache *services.CacheService, scheduler *services.LiveWindowScheduler) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		scheduler: scheduler,
	}
}

// GetHealth returns basic health status - always returns 200 if server is running
// This is used for basic liveness probes
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "confidence-pool",
	})
}

// GetReady returns readiness status - only returns 200 when critical services are ready
// This is used for readiness probes in container orchestration
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if err := h.db.Ping(); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.cache.Ping(c.Request.Context()); err != nil {
		checks["redis"] = err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	status := h.scheduler.Status()
	checks["scheduler"] = status.State
	if status.State == services.SchedulerStopped {
		ready = false
	}

	if ready {
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"checks": checks,
		})
	} else {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": checks,
		})
	}
}
