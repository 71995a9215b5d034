package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/dartvision/internal/api/handlers"
	"github.com/your-org/dartvision/internal/api/ws"
	"github.com/your-org/dartvision/internal/auth"
	"github.com/your-org/dartvision/internal/engine"
	"github.com/your-org/dartvision/internal/queue"
	"github.com/your-org/dartvision/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	Engine   *engine.Engine
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	v1.GET("/ws", cfg.Hub.HandleWS)

	boardH := handlers.NewBoardHandler(cfg.Engine, cfg.DB, cfg.MinIO, cfg.Producer, cfg.Hub)
	v1.GET("/boards/:id", boardH.Get)
	v1.POST("/boards/:id/init", boardH.Init)
	v1.POST("/boards/:id/clear", boardH.Clear)
	v1.POST("/boards/:id/detect", boardH.Detect)

	detH := handlers.NewDetectionHandler(cfg.DB, cfg.MinIO)
	v1.GET("/boards/:id/events", detH.List)
	v1.GET("/detections/:id/frame/:camera_id", detH.Frame)
	v1.GET("/detections/:id/mask/:camera_id", detH.Mask)
	v1.POST("/detections/similar", detH.Similar)

	return r
}
