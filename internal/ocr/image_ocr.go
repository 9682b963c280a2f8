package ocr

import (
	"context"
	"fmt"
	"strconv"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
)

// ImageConfidenceThreshold is the OCR confidence below which a result is
// flagged for review.
const ImageConfidenceThreshold = 0.6

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	var warn []string
	if e.cfg.Preprocess {
		processed, cleanup, err := e.preprocess(path)
		if err != nil {
			warn = append(warn, "preprocess: "+err.Error())
			e.logger.Warn("ocr.preprocess.failed", "path", path, "error", err)
		} else {
			defer cleanup()
			path = processed
		}
	}

	lines, ocrConf, w, err := e.tesseractTSV(ctx, path)
	warn = append(warn, w...)
	lines = normalizeLines(lines)
	txt := joinLines(lines)
	res := ExtractionResult{
		Text:       txt,
		Lines:      lines,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
	}
	if err != nil {
		return res, err
	}
	res.Confidence = blendConfidence(ocrConf, heuristicConfidence(txt))
	return res, nil
}

// tesseractTSV runs tesseract once in TSV mode and returns the grouped
// lines with the mean word confidence.
func (e *Extractor) tesseractTSV(ctx context.Context, path string) ([]Line, float32, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return nil, 0, []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	lines, conf := parseTSV(string(out))
	return lines, conf, nil, nil
}
