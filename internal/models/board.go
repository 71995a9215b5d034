package models

import "time"

// BoardRecord mirrors the existence of an engine.BoardCache entry so the
// API can answer GET /v1/boards/:id without reaching into engine internals.
// The engine owns the actual cache (reference frames, accumulated dart
// masks); this row is bookkeeping only.
type BoardRecord struct {
	ID          string     `json:"id" db:"id"`
	DartCount   int        `json:"dart_count" db:"dart_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ClearedAt   *time.Time `json:"cleared_at,omitempty" db:"cleared_at"`
}
