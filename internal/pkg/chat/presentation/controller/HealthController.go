package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency whose reachability is reported by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	Checks map[string]Pinger
}

func NewHealthController(checks map[string]Pinger) *HealthController {
	return &HealthController{Checks: checks}
}

func (h *HealthController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := gin.H{}
		for name, p := range h.Checks {
			if err := p.Ping(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "dependencies": deps})
	}
}
