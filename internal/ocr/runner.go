package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrToolMissing is returned when an external OCR binary is not installed.
var ErrToolMissing = errors.New("ocr tool not found")

// Runner executes the external OCR tools. Tests swap in a fake.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

// Run captures stdout and stderr separately. A non-zero exit is reported
// with the first line of stderr so callers need not parse it.
func (execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		logger.Debug("ocr.exec.ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", elapsed.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
		return out.Bytes(), errb.Bytes(), nil
	case errors.Is(err, exec.ErrNotFound):
		err = fmt.Errorf("%w: %s", ErrToolMissing, name)
	case ctx.Err() != nil:
		err = fmt.Errorf("%s: %w", name, ctx.Err())
	default:
		if line := firstLine(errb.String()); line != "" {
			err = fmt.Errorf("%s: %w: %s", name, err, line)
		}
	}
	logger.Error("ocr.exec.failed",
		"cmd", name,
		"duration_ms", elapsed.Milliseconds(),
		"error", err,
		"stderr", clip(errb.String(), 8<<10),
	)
	return out.Bytes(), errb.Bytes(), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return clip(strings.TrimSpace(s), 200)
}

// clip shortens s to at most max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
