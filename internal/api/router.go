package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facesearch/internal/api/handlers"
	"github.com/your-org/facesearch/internal/api/ws"
	"github.com/your-org/facesearch/internal/auth"
)

type RouterConfig struct {
	APIKeyHeader   string
	APIKeys        []string
	MaxUploadBytes int64
	Service        handlers.FaceService
	Checks         map[string]handlers.Check
	Models         handlers.ModelStatus
	Hub            *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks, cfg.Models)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKeyHeader, cfg.APIKeys))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	faceH := handlers.NewFaceHandler(cfg.Service, cfg.MaxUploadBytes)
	v1.POST("/faces/reembed", faceH.Reembed)
	v1.POST("/faces/:userId", faceH.Register)
	v1.POST("/faces/:userId/verify", faceH.Verify)
	v1.DELETE("/faces/:userId", faceH.Delete)

	searchH := handlers.NewSearchHandler(cfg.Service, cfg.MaxUploadBytes)
	v1.GET("/search/text", searchH.Text)
	v1.POST("/search/image", searchH.Image)

	return r
}
