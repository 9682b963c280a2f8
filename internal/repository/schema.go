package repository

import (
	"context"
	"fmt"
	"log/slog"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS receipt_files (
		id           TEXT PRIMARY KEY,
		source_path  TEXT NOT NULL,
		filename     TEXT NOT NULL,
		file_ext     TEXT NOT NULL,
		file_size    INTEGER NOT NULL CHECK (file_size >= 0),
		content_hash BLOB NOT NULL UNIQUE,
		uploaded_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extract_jobs (
		id             TEXT PRIMARY KEY,
		file_id        TEXT NOT NULL REFERENCES receipt_files(id) ON DELETE CASCADE,
		status         TEXT NOT NULL,
		format         TEXT NOT NULL,
		ocr_method     TEXT,
		ocr_confidence REAL,
		line_count     INTEGER NOT NULL DEFAULT 0,
		error_message  TEXT,
		started_at     TIMESTAMP NOT NULL,
		finished_at    TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS extraction_records (
		id                TEXT PRIMARY KEY,
		file_id           TEXT NOT NULL REFERENCES receipt_files(id) ON DELETE CASCADE,
		job_id            TEXT REFERENCES extract_jobs(id) ON DELETE SET NULL,
		merchant_name     TEXT,
		transaction_date  DATE,
		currency_code     TEXT,
		currency_detected BOOLEAN NOT NULL DEFAULT FALSE,
		total_amount      TEXT,
		confidence        REAL NOT NULL,
		receipt_type      TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		needs_review      BOOLEAN NOT NULL DEFAULT FALSE,
		raw_text          TEXT NOT NULL,
		created_at        TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		record_id   TEXT NOT NULL REFERENCES extraction_records(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount      TEXT NOT NULL,
		PRIMARY KEY (record_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_records_date ON extraction_records (transaction_date)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_records_file ON extraction_records (file_id, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS receipt_files (
		id           UUID PRIMARY KEY,
		source_path  TEXT NOT NULL,
		filename     TEXT NOT NULL,
		file_ext     TEXT NOT NULL,
		file_size    INTEGER NOT NULL CHECK (file_size >= 0),
		content_hash BYTEA NOT NULL UNIQUE,
		uploaded_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extract_jobs (
		id             UUID PRIMARY KEY,
		file_id        UUID NOT NULL REFERENCES receipt_files(id) ON DELETE CASCADE,
		status         TEXT NOT NULL,
		format         TEXT NOT NULL,
		ocr_method     TEXT,
		ocr_confidence REAL,
		line_count     INTEGER NOT NULL DEFAULT 0,
		error_message  TEXT,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS extraction_records (
		id                UUID PRIMARY KEY,
		file_id           UUID NOT NULL REFERENCES receipt_files(id) ON DELETE CASCADE,
		job_id            UUID REFERENCES extract_jobs(id) ON DELETE SET NULL,
		merchant_name     TEXT,
		transaction_date  DATE,
		currency_code     CHAR(3),
		currency_detected BOOLEAN NOT NULL DEFAULT FALSE,
		total_amount      NUMERIC(14,2),
		confidence        DOUBLE PRECISION NOT NULL,
		receipt_type      TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		needs_review      BOOLEAN NOT NULL DEFAULT FALSE,
		raw_text          TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		record_id   UUID NOT NULL REFERENCES extraction_records(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount      NUMERIC(14,2) NOT NULL,
		PRIMARY KEY (record_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_records_date ON extraction_records (transaction_date)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_records_file ON extraction_records (file_id, created_at)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stmts := sqliteSchema
	if db.driver == DriverPostgres {
		stmts = postgresSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("migration failed", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	logger.Info("database schema ready", "driver", db.driver, "statements", len(stmts))
	return nil
}
