package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
)

// ListFilter narrows RecordRepository.List. Zero values mean no constraint;
// Limit defaults to 50.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

type RecordRepository interface {
	Save(ctx context.Context, fileID uuid.UUID, jobID *uuid.UUID, rec extract.Record, needsReview bool) (*entity.Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	GetLatestForFile(ctx context.Context, fileID uuid.UUID) (*entity.Receipt, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Receipt, error)
	SetTransactionDate(ctx context.Context, id uuid.UUID, date time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type recordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepository{
		db:     db,
		logger: logger,
	}
}

const recordColumns = `id, file_id, job_id, merchant_name, transaction_date, currency_code, currency_detected,
	total_amount, confidence, receipt_type, description, needs_review, raw_text, created_at`

// Save stores rec and its line items in one transaction.
func (r *recordRepository) Save(ctx context.Context, fileID uuid.UUID, jobID *uuid.UUID, rec extract.Record, needsReview bool) (*entity.Receipt, error) {
	out := &entity.Receipt{
		ID:          uuid.New(),
		FileID:      fileID,
		JobID:       jobID,
		Record:      rec,
		NeedsReview: needsReview,
		CreatedAt:   time.Now().UTC(),
	}

	var (
		date  any
		total any
		job   any
	)
	if rec.TransactionDate != nil {
		date = dateOnly(*rec.TransactionDate)
	}
	if rec.TotalAmount != nil {
		total = rec.TotalAmount.StringFixed(2)
	}
	if jobID != nil {
		job = *jobID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, notFound("begin save record", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.db.rebind(`INSERT INTO extraction_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		out.ID, fileID, job, nullString(rec.MerchantName), date, nullString(rec.CurrencyCode), rec.CurrencyDetected,
		total, rec.Confidence, rec.ReceiptType, rec.Description, needsReview, rec.RawText, out.CreatedAt)
	if err != nil {
		r.logger.Error("failed to save record", "file_id", fileID, "error", err)
		return nil, notFound("save record", err)
	}
	for i, it := range rec.LineItems {
		_, err = tx.ExecContext(ctx, r.db.rebind(
			`INSERT INTO line_items (record_id, position, description, amount) VALUES (?, ?, ?, ?)`),
			out.ID, i, it.Description, it.Amount.StringFixed(2))
		if err != nil {
			r.logger.Error("failed to save line item", "record_id", out.ID, "position", i, "error", err)
			return nil, notFound("save line item", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, notFound("commit record", err)
	}

	if out.Record.LineItems == nil {
		out.Record.LineItems = []extract.LineItem{}
	}
	out.Category = categoryFor(rec.MerchantName)
	r.logger.Debug("record.saved", "record_id", out.ID, "file_id", fileID, "items", len(rec.LineItems))
	return out, nil
}

func (r *recordRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	return r.one(ctx, `SELECT `+recordColumns+` FROM extraction_records WHERE id = ?`, id)
}

func (r *recordRepository) GetLatestForFile(ctx context.Context, fileID uuid.UUID) (*entity.Receipt, error) {
	return r.one(ctx, `SELECT `+recordColumns+` FROM extraction_records WHERE file_id = ? ORDER BY created_at DESC LIMIT 1`, fileID)
}

func (r *recordRepository) one(ctx context.Context, q string, arg any) (*entity.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), arg)
	if err != nil {
		return nil, notFound("query record", err)
	}
	out, err := r.collect(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound("record", sql.ErrNoRows)
	}
	return out[0], nil
}

// List returns records ordered by transaction date (undated last), then by
// creation time. Search matches the merchant name or the raw text.
func (r *recordRepository) List(ctx context.Context, f ListFilter) ([]*entity.Receipt, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, dateOnly(*f.From))
	}
	if f.To != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, dateOnly(*f.To))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(LOWER(COALESCE(merchant_name, '')) LIKE ? OR LOWER(raw_text) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + recordColumns + ` FROM extraction_records`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY CASE WHEN transaction_date IS NULL THEN 1 ELSE 0 END, transaction_date DESC, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list records", "error", err)
		return nil, notFound("list records", err)
	}
	return r.collect(ctx, rows)
}

func (r *recordRepository) SetTransactionDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`UPDATE extraction_records SET transaction_date = ? WHERE id = ?`), dateOnly(date), id)
	if err != nil {
		return notFound("update record date", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("record", sql.ErrNoRows)
	}
	return nil
}

// Delete removes the record; its line items cascade.
func (r *recordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM extraction_records WHERE id = ?`), id)
	if err != nil {
		return notFound("delete record", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("record", sql.ErrNoRows)
	}
	r.logger.Info("record.deleted", "record_id", id)
	return nil
}

// collect scans every row, then loads line items once the cursor is closed.
func (r *recordRepository) collect(ctx context.Context, rows *sql.Rows) ([]*entity.Receipt, error) {
	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, notFound("read records", err)
	}
	_ = rows.Close()

	for _, rec := range out {
		items, err := r.lineItems(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Record.LineItems = items
	}
	return out, nil
}

func scanRecord(row interface{ Scan(...any) error }) (*entity.Receipt, error) {
	var (
		out      entity.Receipt
		job      sql.NullString
		merchant sql.NullString
		date     nullTime
		currency sql.NullString
		total    decimal.NullDecimal
		created  nullTime
	)
	rec := &out.Record
	err := row.Scan(&out.ID, &out.FileID, &job, &merchant, &date, &currency, &rec.CurrencyDetected,
		&total, &rec.Confidence, &rec.ReceiptType, &rec.Description, &out.NeedsReview, &rec.RawText, &created)
	if err != nil {
		return nil, err
	}
	if job.Valid {
		id, err := uuid.Parse(job.String)
		if err != nil {
			return nil, err
		}
		out.JobID = &id
	}
	rec.MerchantName = stringPtr(merchant)
	if date.Valid {
		d := dateOnly(date.Time)
		rec.TransactionDate = &d
	}
	if currency.Valid {
		c := strings.TrimSpace(currency.String)
		rec.CurrencyCode = &c
	}
	if total.Valid {
		t := total.Decimal
		rec.TotalAmount = &t
	}
	out.CreatedAt = created.Time
	out.Category = categoryFor(rec.MerchantName)
	return &out, nil
}

func (r *recordRepository) lineItems(ctx context.Context, recordID uuid.UUID) ([]extract.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT description, amount FROM line_items WHERE record_id = ? ORDER BY position`), recordID)
	if err != nil {
		return nil, notFound("query line items", err)
	}
	defer rows.Close()

	items := []extract.LineItem{}
	for rows.Next() {
		var it extract.LineItem
		if err := rows.Scan(&it.Description, &it.Amount); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func categoryFor(merchant *string) string {
	if merchant == nil {
		return ""
	}
	return string(constants.CategoryForMerchant(*merchant))
}
