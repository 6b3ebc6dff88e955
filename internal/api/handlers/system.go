package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// ModelStatus reports which inference models are loaded.
type ModelStatus interface {
	Status() map[string]bool
}

type SystemHandler struct {
	checks map[string]Check
	models ModelStatus
}

func NewSystemHandler(checks map[string]Check, models ModelStatus) *SystemHandler {
	return &SystemHandler{checks: checks, models: models}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz pings every store. Missing models do not fail readiness since each
// component has a non-model fallback; they are reported for visibility.
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	models := map[string]string{}
	if h.models != nil {
		for name, loaded := range h.models.Status() {
			if loaded {
				models[name] = "loaded"
			} else {
				models[name] = "fallback"
			}
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
		"models": models,
	})
}
