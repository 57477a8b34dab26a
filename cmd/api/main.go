package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photostack/internal/api"
	"github.com/your-org/photostack/internal/api/ws"
	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/embed"
	"github.com/your-org/photostack/internal/observability"
	"github.com/your-org/photostack/internal/oracle"
	"github.com/your-org/photostack/internal/pipeline"
	"github.com/your-org/photostack/internal/queue"
	"github.com/your-org/photostack/internal/search"
	"github.com/your-org/photostack/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photostack API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background(), cfg.Embedder.Dim); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS. The event stream is optional: without it ingestion
	// still works, only the live feed goes dark.
	var producer *queue.Producer
	if cfg.NATS.URL != "" {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Warn("connect to nats, continuing without events", "error", err)
			producer = nil
		} else {
			defer producer.Close()
			if err := producer.EnsureStreams(context.Background()); err != nil {
				slog.Warn("ensure nats streams", "error", err)
			}
		}
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Relay ingest events to WebSocket clients
	if producer != nil {
		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Warn("create ingest event consumer", "error", err)
		} else {
			defer consumer.Close()
			err = consumer.ConsumeIngests(ctx, "api-ingests", func(ctx context.Context, msg jetstream.Msg) error {
				hub.BroadcastRaw(msg.Data())
				return nil
			})
			if err != nil {
				slog.Warn("start ingest event consumer", "error", err)
			}
		}
	}

	// Oracles and embedder
	ollama := oracle.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Timeout)
	tagger := oracle.NewAutoTagger(ollama, cfg.Ollama.VisionModel)
	ocrClient := oracle.NewOCRClient(cfg.OCR.BaseURL, cfg.OCR.Timeout)
	embedder := embed.NewService(cfg.Embedder)

	pre := pipeline.NewPreprocessor(cfg.Ingest.TargetLongEdge)
	defaults := pipeline.OptionsFromConfig(cfg.Ingest)

	var events pipeline.EventPublisher
	if producer != nil {
		events = producer
	}
	orchestrator := pipeline.NewOrchestrator(db, minioStore, pre, ocrClient, tagger, embedder, events, slog.Default())

	searchSvc := search.NewService(db, embedder, cfg.Search, slog.Default())
	answerer := search.NewAnswerer(searchSvc, ollama, cfg.Ollama.QAModel, cfg.Search.QATopK, slog.Default())

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:       cfg.Server.APIKey,
		DB:           db,
		MinIO:        minioStore,
		Producer:     producer,
		Hub:          hub,
		Orchestrator: orchestrator,
		Defaults:     defaults,
		Search:       searchSvc,
		Answerer:     answerer,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
