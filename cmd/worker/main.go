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
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/dartvision/internal/config"
	"github.com/your-org/dartvision/internal/engine"
	"github.com/your-org/dartvision/internal/models"
	"github.com/your-org/dartvision/internal/observability"
	"github.com/your-org/dartvision/internal/queue"
	"github.com/your-org/dartvision/internal/storage"
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

	slog.Info("starting dartvision detection worker",
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

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

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeFrameBundles(ctx, cfg.NATS.ConsumerGroup, func(ctx context.Context, msg jetstream.Msg) error {
		var task models.FrameBundleTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal frame bundle task", "error", err)
			return nil // don't retry on a malformed message
		}
		if err := processFrameBundle(ctx, eng, db, minioStore, producer, task); err != nil {
			return fmt.Errorf("process frame bundle board=%s dart=%d: %w", task.BoardID, task.DartNumber, err)
		}
		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start frame bundle consumer", "error", err)
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// processFrameBundle fetches each camera's current and (if this is the
// board's first dart of a fresh reference) baseline frame from MinIO, runs
// the detection engine, and persists plus republishes the result. This is
// the async counterpart of handlers.BoardHandler.Detect — same engine
// calls, same record shape, different source for the bytes.
func processFrameBundle(ctx context.Context, eng *engine.Engine, db *storage.PostgresStore, minioStore *storage.MinIOStore, producer *queue.Producer, task models.FrameBundleTask) error {
	current := make([]engine.CameraFrame, 0, len(task.Cameras))
	var baseline []engine.CameraFrame

	for _, cam := range task.Cameras {
		data, err := minioStore.GetObject(ctx, cam.CurrentKey)
		if err != nil {
			return fmt.Errorf("fetch current frame %s: %w", cam.CurrentKey, err)
		}
		current = append(current, engine.CameraFrame{CameraID: cam.CameraID, Data: data})

		if cam.BaselineKey != "" {
			bdata, err := minioStore.GetObject(ctx, cam.BaselineKey)
			if err != nil {
				return fmt.Errorf("fetch baseline frame %s: %w", cam.BaselineKey, err)
			}
			baseline = append(baseline, engine.CameraFrame{CameraID: cam.CameraID, Data: bdata})
		}
	}

	if len(baseline) > 0 {
		if err := eng.InitBoard(task.BoardID, baseline); err != nil {
			return fmt.Errorf("init board: %w", err)
		}
	}

	start := time.Now()
	res, err := eng.Detect(ctx, task.BoardID, current)
	observability.DetectionDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	rec := &models.DetectionRecord{
		BoardID:       task.BoardID,
		DartNumber:    task.DartNumber,
		Timestamp:     task.Timestamp,
		Segment:       res.Segment,
		Multiplier:    res.Multiplier,
		Score:         res.Score,
		Method:        res.Method,
		Reason:        res.Reason,
		Confidence:    res.Confidence,
		Point:         res.Point,
		Residual:      res.Residual,
		PerCamera:     res.PerCamera,
		Diagnostics:   res.Diagnostics,
		FeatureVector: models.BuildFeatureVector(res),
		FrameKeys:     frameKeysFromTask(task),
	}
	if err := db.CreateDetection(ctx, rec); err != nil {
		return fmt.Errorf("store detection: %w", err)
	}
	if res.Method != engine.MethodNoDetection && res.Method != engine.MethodInsufficientCameras {
		_ = db.IncrementDartCount(ctx, task.BoardID)
	}

	observability.DartsDetected.WithLabelValues(task.BoardID, string(res.Method)).Inc()
	observability.DetectionConfidence.WithLabelValues(task.BoardID).Observe(res.Confidence)
	if res.Diagnostics.CameraDropped {
		observability.CamerasDropped.WithLabelValues(task.BoardID, res.Diagnostics.DroppedCameraID).Inc()
	}
	for camID, cr := range res.PerCamera {
		if cr.Err != "" {
			observability.NoTipDetections.WithLabelValues(task.BoardID, camID, string(cr.Err)).Inc()
		}
	}

	return producer.PublishEvent(ctx, task.BoardID, rec)
}

func frameKeysFromTask(task models.FrameBundleTask) map[string]string {
	keys := make(map[string]string, len(task.Cameras))
	for _, cam := range task.Cameras {
		keys[cam.CameraID] = cam.CurrentKey
	}
	return keys
}
