package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/dartvision/internal/api/ws"
	"github.com/your-org/dartvision/internal/engine"
	"github.com/your-org/dartvision/internal/models"
	"github.com/your-org/dartvision/internal/observability"
	"github.com/your-org/dartvision/internal/queue"
	"github.com/your-org/dartvision/internal/storage"
	"github.com/your-org/dartvision/pkg/dto"
)

// BoardHandler wraps engine.Engine with the transport concerns spec.md §6
// explicitly leaves to the host: multipart decode, board bookkeeping,
// frame/mask persistence, and republishing to the WebSocket hub. It never
// reinterprets an engine result — a no_detection IntersectionResult is
// still a 200 response, per spec.md §7's propagation policy.
type BoardHandler struct {
	eng      *engine.Engine
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	hub      *ws.Hub
}

func NewBoardHandler(eng *engine.Engine, db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer, hub *ws.Hub) *BoardHandler {
	return &BoardHandler{eng: eng, db: db, minio: minio, producer: producer, hub: hub}
}

// Init handles POST /v1/boards/:id/init: multipart form with one
// "before_<camera_id>" file field per camera, establishing that board's
// no-dart reference frame. Idempotent: calling it again simply replaces
// the reference, per spec.md §6 ("Both are idempotent").
func (h *BoardHandler) Init(c *gin.Context) {
	boardID := c.Param("id")

	frames, err := collectCameraFrames(c, "before_")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.eng.InitBoard(boardID, frames); err != nil {
		respondEngineError(c, err)
		return
	}

	board, err := h.db.UpsertBoard(c.Request.Context(), boardID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.ActiveBoards.Inc()

	c.JSON(http.StatusOK, boardResponse(board))
}

// Clear handles POST /v1/boards/:id/clear.
func (h *BoardHandler) Clear(c *gin.Context) {
	boardID := c.Param("id")

	if err := h.eng.ClearBoard(boardID); err != nil {
		respondEngineError(c, err)
		return
	}
	if err := h.db.ClearBoard(c.Request.Context(), boardID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.ActiveBoards.Dec()

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Get handles GET /v1/boards/:id.
func (h *BoardHandler) Get(c *gin.Context) {
	board, err := h.db.GetBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if board == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
		return
	}
	c.JSON(http.StatusOK, boardResponse(board))
}

// Detect handles POST /v1/boards/:id/detect: the synchronous path, run
// directly against engine.Engine with no queue involved — the "pure
// function" integration surface a game-rules service would call. Per
// spec.md §4.1 it takes dart_number plus, per camera, a current and before
// byte buffer; the before buffer re-establishes this board's reference
// frame before the detect call reads it back, so every request is
// self-contained even though the engine's own state is a single cached
// reference per board.
func (h *BoardHandler) Detect(c *gin.Context) {
	boardID := c.Param("id")
	dartNumber, _ := strconv.Atoi(c.PostForm("dart_number"))

	before, err := collectCameraFrames(c, "before_")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	current, err := collectCameraFrames(c, "current_")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(current) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least two cameras required"})
		return
	}

	if len(before) > 0 {
		if err := h.eng.InitBoard(boardID, before); err != nil {
			respondEngineError(c, err)
			return
		}
	}
	if _, err := h.db.UpsertBoard(c.Request.Context(), boardID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	res, err := h.eng.Detect(c.Request.Context(), boardID, current)
	observability.DetectionDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	if err != nil {
		respondEngineError(c, err)
		return
	}

	frameKeys := h.saveSnapshots(c.Request.Context(), boardID, dartNumber, "frames", current)

	rec := &models.DetectionRecord{
		BoardID:       boardID,
		DartNumber:    dartNumber,
		Timestamp:     time.Now(),
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
		FrameKeys:     frameKeys,
	}
	if err := h.db.CreateDetection(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res.Method != engine.MethodNoDetection && res.Method != engine.MethodInsufficientCameras {
		_ = h.db.IncrementDartCount(c.Request.Context(), boardID)
	}

	observability.DartsDetected.WithLabelValues(boardID, string(res.Method)).Inc()
	observability.DetectionConfidence.WithLabelValues(boardID).Observe(res.Confidence)
	if res.Diagnostics.CameraDropped {
		observability.CamerasDropped.WithLabelValues(boardID, res.Diagnostics.DroppedCameraID).Inc()
	}
	for camID, cr := range res.PerCamera {
		if cr.Err != "" {
			observability.NoTipDetections.WithLabelValues(boardID, camID, string(cr.Err)).Inc()
		}
	}

	resp := toDetectResponse(rec)
	_ = h.producer.PublishEvent(c.Request.Context(), boardID, rec)
	h.hub.BroadcastEvent(&dto.WSEvent{Type: "detection", BoardID: boardID, Data: resp})

	c.JSON(http.StatusOK, resp)
}

func (h *BoardHandler) saveSnapshots(ctx context.Context, boardID string, dartNumber int, kind string, frames []engine.CameraFrame) map[string]string {
	keys := make(map[string]string, len(frames))
	for _, f := range frames {
		key := fmt.Sprintf("%s/%s/%d/%s.jpg", kind, boardID, dartNumber, f.CameraID)
		if err := h.minio.PutObject(ctx, key, f.Data, "image/jpeg"); err == nil {
			keys[f.CameraID] = key
		}
	}
	return keys
}

func boardResponse(b *models.BoardRecord) dto.BoardResponse {
	resp := dto.BoardResponse{
		ID:        b.ID,
		DartCount: b.DartCount,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
	if b.ClearedAt != nil {
		s := b.ClearedAt.Format(time.RFC3339)
		resp.ClearedAt = &s
	}
	return resp
}

// collectCameraFrames reads every multipart file field named
// prefix+"<camera_id>" into an engine.CameraFrame, keyed by the camera id
// suffix of the field name.
func collectCameraFrames(c *gin.Context, prefix string) ([]engine.CameraFrame, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("multipart form required: %w", err)
	}

	var frames []engine.CameraFrame
	for field, files := range form.File {
		if len(field) <= len(prefix) || field[:len(prefix)] != prefix {
			continue
		}
		cameraID := field[len(prefix):]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		file, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", field, err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", field, err)
		}
		if len(data) == 0 {
			continue
		}
		frames = append(frames, engine.CameraFrame{CameraID: cameraID, Data: data})
	}
	return frames, nil
}

func respondEngineError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrNotInitializedErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not initialized"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
