package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/dartvision/internal/models"
	"github.com/your-org/dartvision/internal/storage"
	"github.com/your-org/dartvision/pkg/dto"
)

// DetectionHandler serves detection history, object-store proxying, and
// pgvector similarity search — all read paths over data the BoardHandler
// (or the async worker) already produced. It never calls the engine.
type DetectionHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewDetectionHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *DetectionHandler {
	return &DetectionHandler{db: db, minio: minio}
}

// List handles GET /v1/boards/:id/events: paginated detection history for
// one board, most recent first.
func (h *DetectionHandler) List(c *gin.Context) {
	boardID := c.Param("id")

	var from, to *time.Time
	if s := c.Query("from"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			from = &t
		}
	}
	if s := c.Query("to"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			to = &t
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := h.db.QueryDetections(c.Request.Context(), boardID, from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.DetectResponse, 0, len(records))
	for i := range records {
		resp = append(resp, toDetectResponse(&records[i]))
	}
	c.JSON(http.StatusOK, dto.DetectionListResponse{Detections: resp, Total: total})
}

// Frame proxies a stored per-camera frame: GET /v1/detections/:id/frame/:camera_id.
func (h *DetectionHandler) Frame(c *gin.Context) {
	h.serveObject(c, func(d *models.DetectionRecord, cameraID string) (string, bool) {
		key, ok := d.FrameKeys[cameraID]
		return key, ok
	})
}

// Mask proxies a stored per-camera debug motion-mask snapshot: GET
// /v1/detections/:id/mask/:camera_id.
func (h *DetectionHandler) Mask(c *gin.Context) {
	h.serveObject(c, func(d *models.DetectionRecord, cameraID string) (string, bool) {
		key, ok := d.MaskKeys[cameraID]
		return key, ok
	})
}

func (h *DetectionHandler) serveObject(c *gin.Context, pick func(*models.DetectionRecord, string) (string, bool)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}
	d, err := h.db.GetDetection(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "detection not found"})
		return
	}
	key, ok := pick(d, c.Param("camera_id"))
	if !ok || key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no object for this camera"})
		return
	}
	data, err := h.minio.GetObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	contentType := "image/jpeg"
	if len(key) > 4 && key[len(key)-4:] == ".png" {
		contentType = "image/png"
	}
	c.Data(http.StatusOK, contentType, data)
}

// Similar handles POST /v1/detections/similar: pgvector nearest-neighbour
// search over FeatureVector, seeded either by an existing detection id or
// an inline feature vector.
func (h *DetectionHandler) Similar(c *gin.Context) {
	var req dto.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feature := req.Feature
	if req.DetectionID != "" {
		id, err := uuid.Parse(req.DetectionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection_id"})
			return
		}
		d, err := h.db.GetDetection(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if d == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "detection not found"})
			return
		}
		feature = d.FeatureVector
	}
	if len(feature) != models.FeatureVectorWidth {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("feature must have width %d", models.FeatureVectorWidth)})
		return
	}

	matches, err := h.db.SearchSimilar(c.Request.Context(), feature, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.SimilarResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.SimilarResult{
			DetectionID: m.DetectionID.String(),
			BoardID:     m.BoardID,
			DartNumber:  m.DartNumber,
			Score:       float64(m.Score),
			Distance:    m.Distance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// DetectResponseFromRecord converts a stored DetectionRecord into its wire
// representation. Exported so the API process's EVENTS consumer can build
// the same WebSocket payload for worker-produced detections that the
// synchronous handler builds for its own.
func DetectResponseFromRecord(d *models.DetectionRecord) dto.DetectResponse {
	return toDetectResponse(d)
}

func toDetectResponse(d *models.DetectionRecord) dto.DetectResponse {
	resp := dto.DetectResponse{
		ID:          d.ID.String(),
		BoardID:     d.BoardID,
		DartNumber:  d.DartNumber,
		Timestamp:   d.Timestamp.Format(time.RFC3339),
		Segment:     d.Segment,
		Multiplier:  d.Multiplier,
		Score:       d.Score,
		Method:      d.Method,
		Reason:      d.Reason,
		Confidence:  d.Confidence,
		Point:       d.Point,
		Residual:    d.Residual,
		PerCamera:   d.PerCamera,
		Diagnostics: d.Diagnostics,
	}
	if len(d.FrameKeys) > 0 {
		resp.FrameURLs = make(map[string]string, len(d.FrameKeys))
		for camID := range d.FrameKeys {
			resp.FrameURLs[camID] = "/v1/detections/" + d.ID.String() + "/frame/" + camID
		}
	}
	if len(d.MaskKeys) > 0 {
		resp.MaskURLs = make(map[string]string, len(d.MaskKeys))
		for camID := range d.MaskKeys {
			resp.MaskURLs[camID] = "/v1/detections/" + d.ID.String() + "/mask/" + camID
		}
	}
	return resp
}
