package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ocr"
)

func main() {
	withFields := flag.Bool("extract", false, "also run field extraction and print the record as JSON")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-extract] <receipt-file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	adapter := extract.NewOCRAdapter(ocr.ConfigFrom(cfg.OCR), logger)

	start := time.Now()
	res, err := adapter.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"lines", len(res.Lines),
		"confidence", res.Confidence,
		"duration_ms", dur.Milliseconds(),
	)
	for _, l := range res.Lines {
		fmt.Printf("%3d  %s\n", l.Index, l.Text)
	}

	if !*withFields {
		return
	}
	engine, err := extract.NewEngineFromConfig(cfg.Extraction, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}
	rec, err := engine.ExtractFields(ctx, res.Lines)
	if err != nil {
		logger.Error("field extraction failed", "error", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
}
