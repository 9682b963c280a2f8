package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
)

type ExtractJobRepository interface {
	Start(ctx context.Context, fileID uuid.UUID, format string) (*entity.ExtractJob, error)
	FinishOCR(ctx context.Context, jobID uuid.UUID, method string, confidence float32, lineCount int) error
	Finish(ctx context.Context, jobID uuid.UUID) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, fileID uuid.UUID, format string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		FileID:    fileID,
		Format:    format,
		Status:    string(constants.JobStatusRunning),
		StartedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO extract_jobs (id, file_id, status, format, started_at) VALUES (?, ?, ?, ?, ?)`),
		job.ID, job.FileID, job.Status, job.Format, job.StartedAt)
	if err != nil {
		r.log.Error("extract_job start failed", "file_id", fileID, "error", err)
		return nil, notFound("start extract job", err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "file_id", fileID, "format", format)
	return job, nil
}

func (r *extractJobRepo) FinishOCR(ctx context.Context, jobID uuid.UUID, method string, confidence float32, lineCount int) error {
	err := r.update(ctx, jobID,
		`UPDATE extract_jobs SET status = ?, ocr_method = ?, ocr_confidence = ?, line_count = ? WHERE id = ?`,
		string(constants.JobStatusOCROK), method, confidence, lineCount, jobID)
	if err != nil {
		r.log.Error("extract_job finish(OCR_OK) failed", "job_id", jobID, "error", err)
		return err
	}
	r.log.Info("extract_job ocr done", "job_id", jobID, "method", method, "line_count", lineCount)
	return nil
}

func (r *extractJobRepo) Finish(ctx context.Context, jobID uuid.UUID) error {
	err := r.update(ctx, jobID,
		`UPDATE extract_jobs SET status = ?, finished_at = ? WHERE id = ?`,
		string(constants.JobStatusExtracted), time.Now().UTC(), jobID)
	if err != nil {
		r.log.Error("extract_job finish(EXTRACTED) failed", "job_id", jobID, "error", err)
		return err
	}
	r.log.Info("extract_job finished (EXTRACTED)", "job_id", jobID)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	err := r.update(ctx, jobID,
		`UPDATE extract_jobs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(constants.JobStatusFailed), message, time.Now().UTC(), jobID)
	if err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "error", err)
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *extractJobRepo) update(ctx context.Context, jobID uuid.UUID, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		return notFound("update extract job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("extract job "+jobID.String(), sql.ErrNoRows)
	}
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	var (
		job      entity.ExtractJob
		method   sql.NullString
		conf     sql.NullFloat64
		errMsg   sql.NullString
		started  nullTime
		finished nullTime
	)
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, file_id, status, format, ocr_method, ocr_confidence, line_count, error_message, started_at, finished_at
		 FROM extract_jobs WHERE id = ?`), jobID).
		Scan(&job.ID, &job.FileID, &job.Status, &job.Format, &method, &conf, &job.LineCount, &errMsg, &started, &finished)
	if err != nil {
		return nil, notFound("extract job", err)
	}
	job.OCRMethod = stringPtr(method)
	if conf.Valid {
		c := float32(conf.Float64)
		job.OCRConfidence = &c
	}
	job.ErrorMessage = stringPtr(errMsg)
	job.StartedAt = started.Time
	job.FinishedAt = finished.ptr()
	return &job, nil
}
