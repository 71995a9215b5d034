package models

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/dartvision/internal/engine"
)

// FeatureVectorWidth is the fixed width of DetectionRecord.FeatureVector,
// named per field so pgvector similarity search compares like with like
// across every stored detection.
const FeatureVectorWidth = 7

// DetectionRecord is the durable row written after every engine.Detect
// call, successful or not. It carries the full per-camera diagnostic
// bundle as JSONB so an offline reviewer can replay exactly what the
// engine saw, plus a fixed-width FeatureVector for pgvector nearest
// neighbour search over "detections shaped like this one".
type DetectionRecord struct {
	ID            uuid.UUID                     `json:"id" db:"id"`
	BoardID       string                         `json:"board_id" db:"board_id"`
	DartNumber    int                            `json:"dart_number" db:"dart_number"`
	Timestamp     time.Time                      `json:"timestamp" db:"timestamp"`
	Segment       int                            `json:"segment" db:"segment"`
	Multiplier    int                            `json:"multiplier" db:"multiplier"`
	Score         int                            `json:"score" db:"score"`
	Method        engine.Method                  `json:"method" db:"method"`
	Reason        string                         `json:"reason,omitempty" db:"reason"`
	Confidence    float64                        `json:"confidence" db:"confidence"`
	Point         engine.Point                   `json:"point" db:"point"`
	Residual      float64                        `json:"residual" db:"residual"`
	PerCamera     map[string]engine.CameraResult `json:"per_camera" db:"per_camera"`
	Diagnostics   engine.Diagnostics             `json:"diagnostics" db:"diagnostics"`
	FeatureVector []float32                      `json:"-" db:"feature_vector"`
	FrameKeys     map[string]string              `json:"frame_keys,omitempty" db:"frame_keys"`
	MaskKeys      map[string]string              `json:"mask_keys,omitempty" db:"mask_keys"`
	CreatedAt     time.Time                      `json:"created_at" db:"created_at"`
}

// BuildFeatureVector derives the fixed-width similarity-search feature from
// a completed IntersectionResult. Entries, in order: the
// BoundaryDistanceDeg of a scored camera from PerCamera (0 for a
// no_detection result), the mean triangulation residual, the final
// confidence, the median confidence of the scored cameras, the number of
// cameras in PerCamera, the wire-vote margin (WinnerPct when wire-ambiguous,
// else 1), and 1 if a camera was dropped, else 0. Ring distance and angular
// spread are not part of the vector.
func BuildFeatureVector(res engine.IntersectionResult) []float32 {
	var confs []float64
	for _, cr := range res.PerCamera {
		if cr.HasScore {
			confs = append(confs, cr.Score.Confidence)
		}
	}
	medianConf := 0.0
	if n := len(confs); n > 0 {
		sort.Float64s(confs)
		medianConf = confs[n/2]
		if n%2 == 0 {
			medianConf = (confs[n/2-1] + confs[n/2]) / 2
		}
	}
	wireMargin := res.Diagnostics.WinnerPct
	if !res.Diagnostics.WireAmbiguous {
		wireMargin = 1.0
	}
	boundaryDist := 0.0
	if res.Method != engine.MethodNoDetection {
		for _, cr := range res.PerCamera {
			if cr.HasScore {
				boundaryDist = cr.Score.BoundaryDistanceDeg
				break
			}
		}
	}
	dropped := 0.0
	if res.Diagnostics.CameraDropped {
		dropped = 1.0
	}
	return []float32{
		float32(boundaryDist),
		float32(res.Residual),
		float32(res.Confidence),
		float32(medianConf),
		float32(len(res.PerCamera)),
		float32(wireMargin),
		float32(dropped),
	}
}

// FrameBundleTask is the message published to NATS for worker processing:
// a board/dart identity plus per-camera object-store references instead of
// inline bytes, so the synchronous API path (which receives bytes
// directly) and the async worker path (which fetches from MinIO) share the
// same engine.CameraFrame assembly step downstream.
type FrameBundleTask struct {
	BoardID    string               `json:"board_id"`
	DartNumber int                  `json:"dart_number"`
	Cameras    []FrameBundleCamera  `json:"cameras"`
	Timestamp  time.Time            `json:"timestamp"`
}

// FrameBundleCamera references one camera's current and baseline frame
// objects for a FrameBundleTask.
type FrameBundleCamera struct {
	CameraID    string `json:"camera_id"`
	CurrentKey  string `json:"current_key"`
	BaselineKey string `json:"baseline_key"`
}
