package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photostack/internal/api/handlers"
	"github.com/your-org/photostack/internal/api/ws"
	"github.com/your-org/photostack/internal/auth"
	"github.com/your-org/photostack/internal/pipeline"
	"github.com/your-org/photostack/internal/queue"
	"github.com/your-org/photostack/internal/search"
	"github.com/your-org/photostack/internal/storage"
)

type RouterConfig struct {
	APIKey       string
	DB           *storage.PostgresStore
	MinIO        *storage.MinIOStore
	Producer     *queue.Producer
	Hub          *ws.Hub
	Orchestrator *pipeline.Orchestrator
	Defaults     pipeline.Options
	Search       *search.Service
	Answerer     *search.Answerer
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
	v1.Use(auth.RequireKey(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Ingestion
	ingestH := handlers.NewIngestHandler(cfg.Orchestrator, cfg.Defaults)
	v1.POST("/images", ingestH.Create)

	// Records
	imageH := handlers.NewImageHandler(cfg.DB, cfg.MinIO, cfg.Orchestrator)
	v1.GET("/images/:id", imageH.Get)
	v1.GET("/images/:id/raw", imageH.Raw)
	v1.POST("/images/:id/backfill", imageH.Backfill)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Search)
	v1.POST("/search", searchH.Text)
	v1.POST("/search/image", searchH.Image)

	// Question answering
	queryH := handlers.NewQueryHandler(cfg.Answerer)
	v1.POST("/query", queryH.Ask)

	v1.GET("/stats", systemH.Stats)

	return r
}
