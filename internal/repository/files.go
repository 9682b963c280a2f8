package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
)

type ReceiptFileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptFile, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.ReceiptFile, error)
	Create(ctx context.Context, sourcePath, filename, ext string, size int, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, error)
	UpsertByHash(ctx context.Context, sourcePath, filename, ext string, size int, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type receiptFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptFileRepository(db *DB, logger *slog.Logger) ReceiptFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &receiptFileRepo{
		db:     db,
		logger: logger,
	}
}

const fileColumns = `id, source_path, filename, file_ext, file_size, content_hash, uploaded_at`

func (r *receiptFileRepo) scan(row interface{ Scan(...any) error }) (*entity.ReceiptFile, error) {
	var (
		f  entity.ReceiptFile
		up nullTime
	)
	if err := row.Scan(&f.ID, &f.SourcePath, &f.Filename, &f.FileExt, &f.FileSize, &f.ContentHash, &up); err != nil {
		return nil, err
	}
	f.UploadedAt = up.Time
	return &f, nil
}

func (r *receiptFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ReceiptFile, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT `+fileColumns+` FROM receipt_files WHERE id = ?`), id)
	f, err := r.scan(row)
	if err != nil {
		return nil, notFound("receipt file", err)
	}
	return f, nil
}

func (r *receiptFileRepo) GetByHash(ctx context.Context, hash []byte) (*entity.ReceiptFile, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT `+fileColumns+` FROM receipt_files WHERE content_hash = ?`), hash)
	f, err := r.scan(row)
	if err != nil {
		return nil, notFound("receipt file", err)
	}
	return f, nil
}

func (r *receiptFileRepo) Create(ctx context.Context, sourcePath, filename, ext string, size int, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, error) {
	f := &entity.ReceiptFile{
		ID:          uuid.New(),
		SourcePath:  sourcePath,
		ContentHash: hash,
		Filename:    filename,
		FileExt:     ext,
		FileSize:    size,
		UploadedAt:  uploadedAt.UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.db.rebind(`INSERT INTO receipt_files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		f.ID, f.SourcePath, f.Filename, f.FileExt, f.FileSize, f.ContentHash, f.UploadedAt)
	if err != nil {
		r.logger.Error("failed to create receipt file", "source_path", sourcePath, "filename", filename, "error", err)
		return nil, notFound("create receipt file", err)
	}
	return f, nil
}

// UpsertByHash returns the existing row for hash, or creates one. The bool
// reports whether the file already existed.
func (r *receiptFileRepo) UpsertByHash(ctx context.Context, sourcePath, filename, ext string, size int, hash []byte, uploadedAt time.Time) (*entity.ReceiptFile, bool, error) {
	if existing, err := r.GetByHash(ctx, hash); err == nil {
		return existing, true, nil
	}
	row, err := r.Create(ctx, sourcePath, filename, ext, size, hash, uploadedAt)
	if err != nil {
		// lost a race with a concurrent ingest of the same bytes
		if existing, getErr := r.GetByHash(ctx, hash); getErr == nil {
			return existing, true, nil
		}
		r.logger.Error("failed to upsert receipt file by hash", "source_path", sourcePath, "filename", filename, "error", err)
		return nil, false, err
	}
	return row, false, nil
}

// Delete removes the file row; jobs, records and line items cascade.
func (r *receiptFileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM receipt_files WHERE id = ?`), id)
	if err != nil {
		return notFound("delete receipt file", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("receipt file", sql.ErrNoRows)
	}
	return nil
}
