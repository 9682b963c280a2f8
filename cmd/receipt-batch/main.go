package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/export"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ingest"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ocr"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
	repo "github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/server"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir     = flag.String("dir", "", "directory to process receipts from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		fromStr = flag.String("from", "", "from date YYYY-MM-DD")
		toStr   = flag.String("to", "", "to date YYYY-MM-DD")
		workers = flag.Int("workers", 2, "files processed concurrently")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "receipts.xlsx")
	}

	from, err := utils.ParseOptionalYMD(*fromStr)
	if err != nil {
		printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(1)
	}
	to, err := utils.ParseOptionalYMD(*toStr)
	if err != nil {
		printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = repo.DriverSQLite
		cfg.Database.DSN = ":memory:"
	}
	logger := common.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	filesRepo := repo.NewReceiptFileRepository(db, logger)
	jobsRepo := repo.NewExtractJobRepository(db, logger)
	recordsRepo := repo.NewRecordRepository(db, logger)

	engine, err := extract.NewEngineFromConfig(cfg.Extraction, logger)
	if err != nil {
		logger.Error("failed to build extraction engine", "error", err)
		os.Exit(1)
	}
	ocrAdapter := extract.NewOCRAdapter(ocr.ConfigFrom(cfg.OCR), logger)
	processor := pipeline.NewProcessor(logger,
		pipeline.NewOCRStage(filesRepo, jobsRepo, ocrAdapter, nil, logger),
		pipeline.NewExtractStage(logger, pipeline.Config{ReviewThreshold: cfg.Extraction.ReviewThreshold}, engine, recordsRepo, jobsRepo, nil),
	)

	ingestor := ingest.NewFSIngestor(filesRepo, cfg.Ingest.UploadDir, logger)

	logger.Info("starting ingestion", "dir", *dir)
	results, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}

	var ingested []uuid.UUID
	for _, r := range results {
		if r.Err == "" && !r.Deduplicated {
			ingested = append(ingested, r.FileID)
		}
	}
	logger.Info("ingestion complete",
		"files_ingested", len(ingested),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	var processed, failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for _, fileID := range ingested {
		fileID := fileID
		g.Go(func() error {
			logger.Info("processing file", "file_id", fileID)
			if _, err := processor.ProcessFile(gctx, fileID); err != nil {
				logger.Error("failed to process file", "file_id", fileID, "error", err)
				failures.Add(1)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := export.NewService(recordsRepo, filesRepo, logger).ExportRecordsXLSX(ctx, from, to)
	if err != nil {
		logger.Error("failed to export records", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_ingested", len(ingested),
		"files_processed", processed.Load(),
		"failures", failures.Load(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files ingested: %d\n", len(ingested))
	fmt.Printf("- Files processed: %d\n", processed.Load())
	fmt.Printf("- Failures: %d\n", failures.Load())
	fmt.Printf("- Output: %s\n", *out)
}
