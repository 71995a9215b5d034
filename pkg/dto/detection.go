package dto

import "github.com/your-org/dartvision/internal/engine"

// DetectResponse is the JSON body of POST /v1/boards/:id/detect and of
// each row in GET /v1/boards/:id/events. It mirrors engine.IntersectionResult
// field for field — the host service never reinterprets engine semantics,
// only adds transport-facing identity (id, board_id, dart_number, timestamp).
type DetectResponse struct {
	ID          string                         `json:"id,omitempty"`
	BoardID     string                         `json:"board_id"`
	DartNumber  int                            `json:"dart_number"`
	Timestamp   string                         `json:"timestamp,omitempty"`
	Segment     int                            `json:"segment"`
	Multiplier  int                            `json:"multiplier"`
	Score       int                            `json:"score"`
	Method      engine.Method                  `json:"method"`
	Reason      string                         `json:"reason,omitempty"`
	Confidence  float64                        `json:"confidence"`
	Point       engine.Point                   `json:"point"`
	Residual    float64                        `json:"residual"`
	PerCamera   map[string]engine.CameraResult `json:"per_camera"`
	Diagnostics engine.Diagnostics             `json:"diagnostics"`
	FrameURLs   map[string]string              `json:"frame_urls,omitempty"`
	MaskURLs    map[string]string              `json:"mask_urls,omitempty"`
}

type DetectionListResponse struct {
	Detections []DetectResponse `json:"detections"`
	Total      int              `json:"total"`
}

// SimilarRequest drives POST /v1/detections/similar: either reference an
// existing detection by id, or supply an inline feature vector of width
// models.FeatureVectorWidth directly.
type SimilarRequest struct {
	DetectionID string    `json:"detection_id,omitempty"`
	Feature     []float32 `json:"feature,omitempty"`
	Limit       int       `json:"limit,omitempty"`
}

type SimilarResult struct {
	DetectionID string  `json:"detection_id"`
	BoardID     string  `json:"board_id"`
	DartNumber  int     `json:"dart_number"`
	Score       float64 `json:"score"`
	Distance    float32 `json:"distance"`
}

// WSEvent is the WebSocket message broadcast for every completed
// detection. BoardID lets a dashboard filter to the board it cares about,
// the way the teacher's hub filtered by stream id.
type WSEvent struct {
	Type    string         `json:"type"` // detection
	BoardID string         `json:"board_id"`
	Data    DetectResponse `json:"data"`
}
