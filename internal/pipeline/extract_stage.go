package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/metrics"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ocr"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

// Config holds thresholds for the extract stage.
type Config struct {
	ReviewThreshold float64       // default 0.5
	SaveTimeout     time.Duration // default 10s, used when the caller's context is already done
}

type ExtractStage struct {
	Logger   *slog.Logger
	Cfg      Config
	Fields   extract.FieldExtractor
	Records  repository.RecordRepository
	JobsRepo repository.ExtractJobRepository
	Metrics  *metrics.Metrics
}

func NewExtractStage(
	logger *slog.Logger,
	cfg Config,
	fields extract.FieldExtractor,
	records repository.RecordRepository,
	jobs repository.ExtractJobRepository,
	m *metrics.Metrics,
) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.5
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	return &ExtractStage{
		Logger:   logger,
		Cfg:      cfg,
		Fields:   fields,
		Records:  records,
		JobsRepo: jobs,
		Metrics:  m,
	}
}

// Run extracts a record from the OCR outcome and stores it. A failed OCR
// still produces a stored record flagged for review, and the job ends
// FAILED with the OCR error.
func (s *ExtractStage) Run(ctx context.Context, in ocrOutcome, manualDate *time.Time) (*entity.Receipt, error) {
	// the degraded record is saved even when OCR timed out
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.Cfg.SaveTimeout)
		defer cancel()
	}

	rec, err := s.Fields.ExtractFields(ctx, in.Result.Lines)
	if err != nil {
		s.fail(ctx, in, err)
		return nil, fmt.Errorf("extract fields: %w", err)
	}
	if rec.TransactionDate == nil && manualDate != nil {
		d := *manualDate
		rec.TransactionDate = &d
	}

	needsReview := s.needsReview(rec, in)
	saved, err := s.Records.Save(ctx, in.File.ID, &in.JobID, rec, needsReview)
	if err != nil {
		s.Logger.Error("processor.save.failed", "file_id", in.File.ID, "job_id", in.JobID, "error", err)
		s.fail(ctx, in, err)
		return nil, err
	}

	outcome := metrics.OutcomeOK
	switch {
	case in.Err != nil:
		outcome = metrics.OutcomeOCRError
		if err := s.JobsRepo.FinishFailure(ctx, in.JobID, in.Err.Error()); err != nil {
			s.Logger.Error("processor.job.update_failed", "job_id", in.JobID, "error", err)
		}
	case needsReview:
		outcome = metrics.OutcomeReview
		fallthrough
	default:
		if err := s.JobsRepo.Finish(ctx, in.JobID); err != nil {
			return saved, err
		}
	}
	s.Metrics.ObserveExtraction(outcome, rec.Confidence, rec.ResolvedFields())

	s.Logger.Info("processor.extract.ok",
		"file_id", in.File.ID,
		"job_id", in.JobID,
		"record_id", saved.ID,
		"confidence", rec.Confidence,
		"needs_review", needsReview,
		"items", len(rec.LineItems),
	)
	return saved, nil
}

func (s *ExtractStage) needsReview(rec extract.Record, in ocrOutcome) bool {
	if in.Err != nil || rec.Confidence < s.Cfg.ReviewThreshold {
		return true
	}
	c := in.Result.Confidence
	return c > 0 && c < ocr.ImageConfidenceThreshold
}

func (s *ExtractStage) fail(ctx context.Context, in ocrOutcome, err error) {
	s.Metrics.ObserveExtraction(metrics.OutcomeFailed, 0, nil)
	msg := err.Error()
	if in.Err != nil {
		msg = in.Err.Error() + "; " + msg
	}
	if ferr := s.JobsRepo.FinishFailure(ctx, in.JobID, msg); ferr != nil {
		s.Logger.Error("processor.job.update_failed", "job_id", in.JobID, "error", ferr)
	}
}
