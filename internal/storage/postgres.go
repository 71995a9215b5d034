package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/dartvision/internal/config"
	"github.com/your-org/dartvision/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Boards ---

// UpsertBoard creates the bookkeeping row for a board on first mention, or
// touches UpdatedAt and clears ClearedAt if the board had previously been
// cleared. Mirrors engine.boardRegistry.getOrCreate: idempotent, lazy.
func (s *PostgresStore) UpsertBoard(ctx context.Context, boardID string) (*models.BoardRecord, error) {
	b := &models.BoardRecord{ID: boardID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO boards (id, dart_count, created_at, updated_at)
		VALUES ($1, 0, now(), now())
		ON CONFLICT (id) DO UPDATE SET updated_at = now(), cleared_at = NULL
		RETURNING dart_count, created_at, updated_at, cleared_at`,
		boardID,
	).Scan(&b.DartCount, &b.CreatedAt, &b.UpdatedAt, &b.ClearedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert board: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (*models.BoardRecord, error) {
	b := &models.BoardRecord{ID: boardID}
	err := s.pool.QueryRow(ctx,
		`SELECT dart_count, created_at, updated_at, cleared_at FROM boards WHERE id = $1`, boardID,
	).Scan(&b.DartCount, &b.CreatedAt, &b.UpdatedAt, &b.ClearedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

// IncrementDartCount bumps a board's current-turn dart count after a
// successful detection is persisted.
func (s *PostgresStore) IncrementDartCount(ctx context.Context, boardID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE boards SET dart_count = dart_count + 1, updated_at = now() WHERE id = $1`, boardID)
	return err
}

// ClearBoard marks a board cleared and resets its dart count, mirroring
// engine.Engine.ClearBoard. The row is kept (not deleted) so detection
// history for the board remains queryable.
func (s *PostgresStore) ClearBoard(ctx context.Context, boardID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE boards SET dart_count = 0, cleared_at = now(), updated_at = now() WHERE id = $1`, boardID)
	return err
}

// --- Detections ---

func (s *PostgresStore) CreateDetection(ctx context.Context, d *models.DetectionRecord) error {
	point, err := json.Marshal(d.Point)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}
	perCamera, err := json.Marshal(d.PerCamera)
	if err != nil {
		return fmt.Errorf("marshal per_camera: %w", err)
	}
	diagnostics, err := json.Marshal(d.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	frameKeys, err := json.Marshal(d.FrameKeys)
	if err != nil {
		return fmt.Errorf("marshal frame_keys: %w", err)
	}
	maskKeys, err := json.Marshal(d.MaskKeys)
	if err != nil {
		return fmt.Errorf("marshal mask_keys: %w", err)
	}

	var vec *pgvector.Vector
	if len(d.FeatureVector) > 0 {
		v := pgvector.NewVector(d.FeatureVector)
		vec = &v
	}

	d.Timestamp = timeOrNow(d.Timestamp)
	return s.pool.QueryRow(ctx, `
		INSERT INTO detections
			(id, board_id, dart_number, timestamp, segment, multiplier, score,
			 method, reason, confidence, point, residual, per_camera, diagnostics,
			 feature_vector, frame_keys, mask_keys, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		RETURNING id, created_at`,
		d.BoardID, d.DartNumber, d.Timestamp, d.Segment, d.Multiplier, d.Score,
		d.Method, d.Reason, d.Confidence, point, d.Residual, perCamera, diagnostics,
		vec, frameKeys, maskKeys,
	).Scan(&d.ID, &d.CreatedAt)
}

func (s *PostgresStore) GetDetection(ctx context.Context, id uuid.UUID) (*models.DetectionRecord, error) {
	d := &models.DetectionRecord{}
	var point, perCamera, diagnostics, frameKeys, maskKeys []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, board_id, dart_number, timestamp, segment, multiplier, score,
		       method, reason, confidence, point, residual, per_camera, diagnostics,
		       frame_keys, mask_keys, created_at
		FROM detections WHERE id = $1`, id,
	).Scan(&d.ID, &d.BoardID, &d.DartNumber, &d.Timestamp, &d.Segment, &d.Multiplier, &d.Score,
		&d.Method, &d.Reason, &d.Confidence, &point, &d.Residual, &perCamera, &diagnostics,
		&frameKeys, &maskKeys, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get detection: %w", err)
	}
	if err := unmarshalInto(point, &d.Point); err != nil {
		return nil, err
	}
	if err := unmarshalInto(perCamera, &d.PerCamera); err != nil {
		return nil, err
	}
	if err := unmarshalInto(diagnostics, &d.Diagnostics); err != nil {
		return nil, err
	}
	if err := unmarshalInto(frameKeys, &d.FrameKeys); err != nil {
		return nil, err
	}
	if err := unmarshalInto(maskKeys, &d.MaskKeys); err != nil {
		return nil, err
	}
	return d, nil
}

// QueryDetections returns a page of a board's detection history, most
// recent first, plus the total row count for that board.
func (s *PostgresStore) QueryDetections(ctx context.Context, boardID string, from, to *time.Time, limit, offset int) ([]models.DetectionRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := "WHERE board_id = $1"
	args := []interface{}{boardID}
	argIdx := 2
	if from != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM detections "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count detections: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, board_id, dart_number, timestamp, segment, multiplier, score,
		       method, reason, confidence, point, residual, per_camera, diagnostics,
		       frame_keys, mask_keys, created_at
		FROM detections %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []models.DetectionRecord
	for rows.Next() {
		var d models.DetectionRecord
		var point, perCamera, diagnostics, frameKeys, maskKeys []byte
		if err := rows.Scan(&d.ID, &d.BoardID, &d.DartNumber, &d.Timestamp, &d.Segment, &d.Multiplier, &d.Score,
			&d.Method, &d.Reason, &d.Confidence, &point, &d.Residual, &perCamera, &diagnostics,
			&frameKeys, &maskKeys, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan detection: %w", err)
		}
		if err := unmarshalInto(point, &d.Point); err != nil {
			return nil, 0, err
		}
		if err := unmarshalInto(perCamera, &d.PerCamera); err != nil {
			return nil, 0, err
		}
		if err := unmarshalInto(diagnostics, &d.Diagnostics); err != nil {
			return nil, 0, err
		}
		if err := unmarshalInto(frameKeys, &d.FrameKeys); err != nil {
			return nil, 0, err
		}
		if err := unmarshalInto(maskKeys, &d.MaskKeys); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, nil
}

// SearchSimilar performs a pgvector nearest-neighbour search over
// FeatureVector: "find past throws shaped like this one" (equally
// wire-ambiguous, equally contested triangulation, etc).
func (s *PostgresStore) SearchSimilar(ctx context.Context, feature []float32, limit int) ([]SimilarMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(feature)
	rows, err := s.pool.Query(ctx, `
		SELECT id, board_id, dart_number, score, feature_vector <-> $1 AS distance
		FROM detections
		WHERE feature_vector IS NOT NULL
		ORDER BY feature_vector <-> $1
		LIMIT $2`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var matches []SimilarMatch
	for rows.Next() {
		var m SimilarMatch
		if err := rows.Scan(&m.DetectionID, &m.BoardID, &m.DartNumber, &m.Score, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan similar match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

type SimilarMatch struct {
	DetectionID uuid.UUID
	BoardID     string
	DartNumber  int
	Score       int
	Distance    float32
}

func unmarshalInto(raw []byte, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
