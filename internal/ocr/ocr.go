package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	HeicConverter string // "heif-convert" | "magick" | "sips"

	PSM int // 6 suits a uniform block of text
	OEM int // 1 = LSTM; 0 keeps the tesseract default

	ArtifactCacheDir string

	// Preprocess resizes, grayscales, boosts contrast and sharpens images
	// before recognition.
	Preprocess   bool
	TargetHeight int
	Timeout      time.Duration
}

// Line is one recognized line in reading order. Top is the pixel offset of
// the line on its page, or -1 when the source has no geometry.
type Line struct {
	Text  string
	Index int
	Top   int
	Page  int
}

type ExtractionResult struct {
	Text       string
	Lines      []Line
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.TargetHeight <= 0 {
		cfg.TargetHeight = 1800
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the effective configuration after defaults were applied.
func (e *Extractor) Config() Config { return e.cfg }

// Extract picks a strategy based on file extension. On failure the result
// still carries whatever lines were recognized before the error.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		var warns []string
		if constants.IsHEICExt(ext) {
			hashHex, _ := common.ContentHashFromContext(ctx)
			out, w, cleanup, convErr := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
			warns = append(warns, w...)
			if cleanup != nil {
				defer cleanup()
			}
			if convErr != nil {
				e.logger.Error("ocr.heic.failed", "path", path, "error", convErr)
				return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns, Duration: time.Since(start)}, convErr
			}
			path = out
		}
		res, err = e.extractImage(ctx, path)
		res.Warnings = append(res.Warnings, warns...)
	default:
		e.logger.Error("ocr.extract.unsupported", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}

// linesFromText splits plain text (pdftotext output) into lines. Form feeds
// advance the page counter.
func linesFromText(text string) []Line {
	var out []Line
	page := 1
	for _, raw := range strings.Split(text, "\n") {
		if n := strings.Count(raw, "\f"); n > 0 {
			page += n
			raw = strings.ReplaceAll(raw, "\f", "")
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		out = append(out, Line{Text: raw, Index: len(out), Top: -1, Page: page})
	}
	return out
}

func joinLines(lines []Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// ConfigFrom maps the environment configuration onto an extractor Config.
// Fields it leaves zero take the extractor defaults.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Tesseract:        c.Tesseract,
		TesseractLang:    c.TesseractLang,
		PSM:              c.PSM,
		HeicConverter:    c.HeicConverter,
		TessdataDir:      c.TessdataDir,
		ArtifactCacheDir: c.ArtifactCacheDir,
		Preprocess:       c.Preprocess,
		TargetHeight:     c.TargetHeight,
		Timeout:          c.Timeout,
	}
}
