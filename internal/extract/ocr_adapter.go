package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ocr"
)

// OCRAdapter exposes an ocr.Extractor as a TextExtractor. The extractor is
// built on first use, after checking that the tesseract binary exists.
type OCRAdapter struct {
	cfg    ocr.Config
	opts   []ocr.Option
	logger *slog.Logger

	once      sync.Once
	extractor *ocr.Extractor
	initErr   error
	lookPath  func(string) (string, error)
}

func NewOCRAdapter(cfg ocr.Config, logger *slog.Logger, opts ...ocr.Option) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{cfg: cfg, opts: opts, logger: logger, lookPath: exec.LookPath}
}

func (a *OCRAdapter) init() (*ocr.Extractor, error) {
	a.once.Do(func() {
		e := ocr.NewExtractor(a.cfg, a.logger, a.opts...)
		bin := e.Config().Tesseract
		if a.lookPath != nil {
			if _, err := a.lookPath(bin); err != nil {
				a.initErr = fmt.Errorf("ocr: tesseract binary %q not found: %w", bin, err)
				a.logger.Error("ocr.adapter.init_failed", "binary", bin, "error", err)
				return
			}
		}
		a.extractor = e
		a.logger.Info("ocr.adapter.ready", "binary", bin, "lang", e.Config().TesseractLang)
	})
	return a.extractor, a.initErr
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	e, err := a.init()
	if err != nil {
		return TextExtractionResult{}, err
	}
	r, err := e.Extract(ctx, path)
	lines := make([]TextLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = TextLine{Text: l.Text, Index: l.Index, Top: l.Top}
	}
	return TextExtractionResult{
		Text:       r.Text,
		Lines:      lines,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}, err
}

var _ TextExtractor = (*OCRAdapter)(nil)
