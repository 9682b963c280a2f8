package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
)

// extractPDF reads the text layer and falls back to rasterized OCR when the
// layer is empty.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.TesseractLang}

	text, pages, warn, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warn...)
	if err == nil && strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) != "" {
		res.Lines = normalizeLines(linesFromText(text))
		res.Text = joinLines(res.Lines)
		res.Pages = pages
		res.Method = "pdf-text"
		res.Confidence = blendConfidence(0, heuristicConfidence(res.Text))
		return res, nil
	}
	if err != nil {
		e.logger.Warn("ocr.pdf.text_failed", "path", path, "error", err)
	}

	lines, pages, conf, warn, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warn...)
	res.Lines = normalizeLines(lines)
	res.Text = joinLines(res.Lines)
	res.Pages = pages
	res.Method = "pdf-ocr"
	if err != nil {
		return res, err
	}
	res.Confidence = blendConfidence(conf, heuristicConfidence(res.Text))
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// a form feed separates pages
	pages = 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (lines []Line, pages int, conf float32, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "ra-pp-*")
	if err != nil {
		return nil, 0, 0, nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, 0, 0, []string{string(errb)}, err
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, 0, 0, []string{"pdftoppm produced no images"}, errors.New("no pages rendered")
	}

	var (
		sum    float32
		scored int
	)
	for i, img := range matches {
		pageLines, c, w, err := e.tesseractTSV(ctx, img)
		warnings = append(warnings, w...)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		for _, l := range pageLines {
			l.Page = i + 1
			l.Index = len(lines)
			lines = append(lines, l)
		}
		if c > 0 {
			sum += c
			scored++
		}
	}
	if scored > 0 {
		conf = sum / float32(scored)
	}
	if len(lines) == 0 && len(warnings) > 0 {
		return nil, len(matches), 0, warnings, errors.New("tesseract failed on every page")
	}
	return lines, len(matches), conf, warnings, nil
}
