package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/dartvision/internal/api"
	"github.com/your-org/dartvision/internal/api/handlers"
	"github.com/your-org/dartvision/internal/api/ws"
	"github.com/your-org/dartvision/internal/config"
	"github.com/your-org/dartvision/internal/engine"
	"github.com/your-org/dartvision/internal/models"
	"github.com/your-org/dartvision/internal/observability"
	"github.com/your-org/dartvision/internal/queue"
	"github.com/your-org/dartvision/internal/storage"
	"github.com/your-org/dartvision/pkg/dto"
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

	slog.Info("starting dartvision API service", "port", cfg.Server.Port)

	doc, err := os.ReadFile(cfg.Vision.CalibrationPath)
	if err != nil {
		slog.Error("read calibration document", "error", err)
		os.Exit(1)
	}
	eng := engine.New(cfg.Vision.EngineConfig())
	if err := eng.Init(doc); err != nil {
		slog.Error("load calibration", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	// Detections produced by the async worker arrive over EVENTS; the
	// synchronous /detect handler broadcasts directly and never touches
	// this consumer, so the same hub sees both paths regardless of which
	// process did the triangulation.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var rec models.DetectionRecord
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			return err
		}
		hub.BroadcastEvent(&dto.WSEvent{
			Type:    "detection",
			BoardID: rec.BoardID,
			Data:    handlers.DetectResponseFromRecord(&rec),
		})
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Engine:   eng,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

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
