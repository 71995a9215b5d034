package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dv",
		Name:      "frames_processed_total",
		Help:      "Total number of camera frames processed",
	}, []string{"camera_id"})

	DartsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dv",
		Name:      "darts_detected_total",
		Help:      "Total number of triangulated dart detections",
	}, []string{"board_id", "method"})

	CamerasDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dv",
		Name:      "cameras_dropped_total",
		Help:      "Total number of cameras excluded as triangulation outliers",
	}, []string{"board_id", "camera_id"})

	NoTipDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dv",
		Name:      "no_tip_total",
		Help:      "Total number of per-camera branches that produced no tip",
	}, []string{"board_id", "camera_id", "reason"})

	DetectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dv",
		Name:      "detection_duration_seconds",
		Help:      "Duration of detection pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.002, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dv",
		Name:      "queue_depth",
		Help:      "Number of pending frame-bundle tasks in queue",
	})

	ActiveBoards = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dv",
		Name:      "active_boards",
		Help:      "Number of boards with a live board cache",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dv",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dv",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	DetectionConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dv",
		Name:      "detection_confidence",
		Help:      "Blended confidence of triangulated detections",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 10),
	}, []string{"board_id"})
)
