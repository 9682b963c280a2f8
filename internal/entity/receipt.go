package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
)

// Receipt is a stored extraction record with its bookkeeping columns.
type Receipt struct {
	ID          uuid.UUID      `json:"id"`
	FileID      uuid.UUID      `json:"file_id"`
	JobID       *uuid.UUID     `json:"job_id,omitempty"`
	Record      extract.Record `json:"record"`
	NeedsReview bool           `json:"needs_review"`
	Category    string         `json:"category,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
