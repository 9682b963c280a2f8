package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractJob tracks one OCR and extraction run over a file.
type ExtractJob struct {
	ID            uuid.UUID  `json:"id"`
	FileID        uuid.UUID  `json:"file_id"`
	Format        string     `json:"format"`
	Status        string     `json:"status"`
	OCRMethod     *string    `json:"ocr_method,omitempty"`
	OCRConfidence *float32   `json:"ocr_confidence,omitempty"`
	LineCount     int        `json:"line_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}
