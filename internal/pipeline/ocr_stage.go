package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/metrics"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

type OCRStage struct {
	FilesRepo     repository.ReceiptFileRepository
	JobsRepo      repository.ExtractJobRepository
	TextExtractor extract.TextExtractor
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

func NewOCRStage(files repository.ReceiptFileRepository, jobs repository.ExtractJobRepository, tx extract.TextExtractor, m *metrics.Metrics, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{FilesRepo: files, JobsRepo: jobs, TextExtractor: tx, Metrics: m, Logger: logger}
}

// ocrOutcome is what the OCR stage hands to the extract stage. Err is set
// when recognition failed; Result may still hold partial lines.
type ocrOutcome struct {
	File   *entity.ReceiptFile
	JobID  uuid.UUID
	Result extract.TextExtractionResult
	Err    error
}

// Run starts an extract_job and recognizes the file's lines. Only lookup
// and job bookkeeping failures are returned as errors; recognition
// failures travel in the outcome so extraction can still run.
func (p *OCRStage) Run(ctx context.Context, fileID uuid.UUID) (ocrOutcome, error) {
	row, err := p.FilesRepo.GetByID(ctx, fileID)
	if err != nil {
		return ocrOutcome{}, fmt.Errorf("get file: %w", err)
	}

	format := row.Format()
	if format == "" {
		return ocrOutcome{File: row}, common.InvalidInput("unsupported format: "+row.FileExt)
	}

	job, err := p.JobsRepo.Start(ctx, row.ID, format)
	if err != nil {
		return ocrOutcome{File: row}, err
	}
	out := ocrOutcome{File: row, JobID: job.ID}

	ctx = common.WithContentHash(ctx, row.HashHex())
	start := time.Now()
	res, err := p.TextExtractor.Extract(ctx, row.SourcePath)
	p.Metrics.ObserveOCR(time.Since(start))
	out.Result = res
	if err != nil {
		p.Logger.Warn("processor.ocr.failed",
			"file_id", fileID,
			"job_id", job.ID,
			"partial_lines", len(res.Lines),
			"error", err,
		)
		out.Err = err
		return out, nil
	}

	if err := p.JobsRepo.FinishOCR(ctx, job.ID, res.Method, res.Confidence, len(res.Lines)); err != nil {
		return out, err
	}
	p.Logger.Info("processor.ocr.ok",
		"file_id", fileID,
		"job_id", job.ID,
		"method", res.Method,
		"pages", res.Pages,
		"lines", len(res.Lines),
		"confidence", res.Confidence,
	)
	return out, nil
}
