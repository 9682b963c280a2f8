package extract

import (
	"context"
	"time"
)

// TextExtractor is stage 1: file -> recognized lines.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Lines      []TextLine
	Pages      int
	SourceType string // "PDF" | "IMAGE"
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// FieldExtractor is stage 2: lines -> record.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, lines []TextLine) (Record, error)
}

var _ FieldExtractor = (*Engine)(nil)
