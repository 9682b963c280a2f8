package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Items"
	pageSize      = 500
)

// Service produces XLSX bytes for exports.
type Service struct {
	records repository.RecordRepository
	files   repository.ReceiptFileRepository
	logger  *slog.Logger
}

func NewService(records repository.RecordRepository, files repository.ReceiptFileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, files: files, logger: logger}
}

// ExportRecordsXLSX returns a workbook with a "Receipts" sheet (one row per
// record) and an "Items" sheet (one row per line item).
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all records.
func (s *Service) ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	if from != nil && to == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		to = &t
	}

	recs, err := s.collect(ctx, repository.ListFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	writeRow(f, receiptsSheet, 1, []any{
		"Record ID", "Transaction Date", "Merchant", "Category", "Currency", "Total",
		"Confidence", "Needs Review", "Receipt Type", "Description", "Receipt/File Path",
	})
	writeRow(f, itemsSheet, 1, []any{"Record ID", "Position", "Description", "Amount", "Currency"})

	paths := map[uuid.UUID]string{}
	itemRow := 2
	for i, r := range recs {
		row := i + 2
		rec := r.Record
		currency := deref(rec.CurrencyCode)

		writeRow(f, receiptsSheet, row, []any{
			r.ID.String(),
			dateCell(rec.TransactionDate),
			deref(rec.MerchantName),
			r.Category,
			currency,
			amountCell(rec),
			rec.Confidence,
			r.NeedsReview,
			rec.ReceiptType,
			truncate(rec.Description, 140),
			s.filePath(ctx, paths, r.FileID),
		})
		if rec.TotalAmount != nil {
			cell, _ := excelize.CoordinatesToCellName(6, row)
			_ = f.SetCellStyle(receiptsSheet, cell, cell, money)
		}

		for pos, it := range rec.LineItems {
			writeRow(f, itemsSheet, itemRow, []any{r.ID.String(), pos + 1, it.Description, it.Amount.InexactFloat64(), currency})
			cell, _ := excelize.CoordinatesToCellName(4, itemRow)
			_ = f.SetCellStyle(itemsSheet, cell, cell, money)
			itemRow++
		}
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(receiptsSheet, "B", "B", 14) // date
	_ = f.SetColWidth(receiptsSheet, "C", "C", 28) // merchant
	_ = f.SetColWidth(receiptsSheet, "D", "I", 14)
	_ = f.SetColWidth(receiptsSheet, "J", "J", 48) // description
	_ = f.SetColWidth(receiptsSheet, "K", "K", 60) // path
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "C", "C", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) collect(ctx context.Context, filter repository.ListFilter) ([]*entity.Receipt, error) {
	var out []*entity.Receipt
	filter.Limit = pageSize
	for {
		page, err := s.records.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		filter.Offset += pageSize
	}
}

func (s *Service) filePath(ctx context.Context, cache map[uuid.UUID]string, id uuid.UUID) string {
	if p, ok := cache[id]; ok {
		return p
	}
	p := ""
	if row, err := s.files.GetByID(ctx, id); err == nil {
		p = row.SourcePath
	} else {
		s.logger.Warn("export.file.lookup_failed", "file_id", id, "error", err)
	}
	cache[id] = p
	return p
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(extract.DateLayout)
}

func amountCell(rec extract.Record) any {
	if rec.TotalAmount == nil {
		return ""
	}
	return rec.TotalAmount.InexactFloat64()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
