package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/metrics"
)

// Processor coordinates OCR (text lines) then the extraction engine (fields).
type Processor struct {
	Logger  *slog.Logger
	OCR     *OCRStage
	Extract *ExtractStage
}

func NewProcessor(logger *slog.Logger, ocr *OCRStage, ext *ExtractStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, Extract: ext}
}

// Result describes one processed file. Receipt is set whenever a record was
// stored, including degraded records from failed OCR.
type Result struct {
	FileID  uuid.UUID
	JobID   uuid.UUID
	Receipt *entity.Receipt
}

type processOptions struct {
	manualDate *time.Time
}

type ProcessOption func(*processOptions)

// WithManualDate supplies a date used only when the engine finds none.
func WithManualDate(d time.Time) ProcessOption {
	return func(o *processOptions) { o.manualDate = &d }
}

// ProcessFile runs OCR for fileID, extracts a record from the lines and
// stores it. When OCR fails the record is still stored for review and the
// OCR error is returned alongside the result.
func (p *Processor) ProcessFile(ctx context.Context, fileID uuid.UUID, opts ...ProcessOption) (*Result, error) {
	var o processOptions
	for _, opt := range opts {
		opt(&o)
	}

	out, err := p.OCR.Run(ctx, fileID)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "file_id", fileID, "error", err)
		return &Result{FileID: fileID, JobID: out.JobID}, err
	}
	res := &Result{FileID: fileID, JobID: out.JobID}

	saved, err := p.Extract.Run(ctx, out, o.manualDate)
	if err != nil {
		p.Logger.Error("processor.extract.failed", "file_id", fileID, "job_id", out.JobID, "error", err)
		return res, err
	}
	res.Receipt = saved
	if out.Err != nil {
		return res, fmt.Errorf("ocr: %w", out.Err)
	}
	return res, nil
}

// ProcessLines runs only the engine; nothing is stored.
func (p *Processor) ProcessLines(ctx context.Context, lines []extract.TextLine) (extract.Record, error) {
	rec, err := p.Extract.Fields.ExtractFields(ctx, lines)
	if err != nil {
		return extract.Record{}, err
	}
	p.Extract.Metrics.ObserveExtraction(metrics.OutcomeLines, rec.Confidence, rec.ResolvedFields())
	return rec, nil
}
