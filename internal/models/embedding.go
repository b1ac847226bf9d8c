package models

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypeUniversity SourceType = "university"
	SourceTypeProgramme  SourceType = "programme"
)

// EmbeddingRecord is one indexed document, uniquely keyed by
// (SourceType, SourceID). TextHash is the checksum of the embedded text; a
// mismatch on upsert triggers re-embedding, a match makes the upsert a no-op.
type EmbeddingRecord struct {
	SourceType SourceType `db:"source_type"`
	SourceID   uuid.UUID  `db:"source_id"`
	Vector     []float32  `db:"vector"`
	TextHash   string     `db:"text_hash"`
	UpdatedAt  time.Time  `db:"updated_at"`
}
