package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/auth"
	"go-directchat/internal/pkg/chat/presentation/controller"
	httpHandler "go-directchat/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts operational endpoints at the root and all version 1
// API routes under /api/v1 behind authentication.
func RegisterRoutes(r *gin.Engine, verifier auth.Verifier, checks map[string]controller.Pinger, deps httpHandler.Deps, log zerolog.Logger) {
	r.GET("/healthz", controller.NewHealthController(checks).Handle())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1", auth.Middleware(verifier, log))
	httpHandler.RegisterRoutes(v1, deps)
}
