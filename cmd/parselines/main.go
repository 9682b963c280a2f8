package main

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
)

// parselines reads recognized receipt text (one line per line) from a file
// or stdin and prints the extracted record as JSON.
func main() {
	file := flag.String("file", "", "text file to read (defaults to stdin)")
	order := flag.String("order", "", "numeric date order, MDY or DMY (overrides DATE_ORDER)")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if *order != "" {
		cfg.Extraction.DateOrder = *order
	}
	engine, err := extract.NewEngineFromConfig(cfg.Extraction, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(2)
	}

	var in io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Error("open input", "path", *file, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		logger.Error("read input", "error", err)
		os.Exit(1)
	}

	rec := engine.ExtractText(string(raw))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
}
