package ocr

import (
	"context"
	"errors"
	"image/color"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	run   func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.run(name, args)
}

const tsvHeader = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n"

func tsvRow(page, block, par, line, word, top int, conf, text string) string {
	return strings.Join([]string{"5", strconv.Itoa(page), strconv.Itoa(block), strconv.Itoa(par), strconv.Itoa(line), strconv.Itoa(word), "10", strconv.Itoa(top), "40", "12", conf, text}, "\t") + "\n"
}

func receiptTSV() string {
	return tsvHeader +
		"1\t1\t0\t0\t0\t0\t0\t0\t800\t1200\t-1\t\n" +
		tsvRow(1, 1, 1, 1, 1, 20, "95", "BIG") +
		tsvRow(1, 1, 1, 1, 2, 22, "85", "MART") +
		tsvRow(1, 1, 1, 2, 1, 60, "90", "Date:") +
		tsvRow(1, 1, 1, 2, 2, 61, "80", "13/07/2026") +
		tsvRow(1, 2, 1, 1, 1, 300, "70", "TOTAL") +
		tsvRow(1, 2, 1, 1, 2, 300, "-1", " ") +
		tsvRow(1, 2, 1, 1, 3, 301, "80", "945.00")
}

func TestParseTSV_GroupsWordsIntoLines(t *testing.T) {
	lines, conf := parseTSV(receiptTSV())
	require.Len(t, lines, 3)
	assert.Equal(t, "BIG MART", lines[0].Text)
	assert.Equal(t, 20, lines[0].Top)
	assert.Equal(t, "Date: 13/07/2026", lines[1].Text)
	assert.Equal(t, "TOTAL 945.00", lines[2].Text)
	assert.Equal(t, 2, lines[2].Index)
	assert.InDelta(t, 0.8333, conf, 0.001)
}

func TestParseTSV_EmptyOutput(t *testing.T) {
	lines, conf := parseTSV(tsvHeader)
	assert.Empty(t, lines)
	assert.Zero(t, conf)
}

func TestExtract_ImageUsesTSVLines(t *testing.T) {
	r := &fakeRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		return []byte(receiptTSV()), nil, nil
	}}
	e := NewExtractor(Config{PSM: 6}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "receipt.jpg")
	require.NoError(t, err)
	assert.Equal(t, constants.IMAGE, res.SourceType)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, "BIG MART\nDate: 13/07/2026\nTOTAL 945.00", res.Text)
	require.Len(t, res.Lines, 3)
	assert.Greater(t, res.Confidence, float32(0.5))

	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract", r.calls[0].name)
	assert.Contains(t, r.calls[0].args, "--psm")
	assert.Equal(t, "tsv", r.calls[0].args[len(r.calls[0].args)-1])
}

func TestExtract_ImageFailureReturnsError(t *testing.T) {
	r := &fakeRunner{run: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("boom"), errors.New("exit status 1")
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "receipt.png")
	require.Error(t, err)
	assert.Empty(t, res.Lines)
	assert.Contains(t, res.Warnings, "boom")
}

func TestExtract_PDFTextLayer(t *testing.T) {
	r := &fakeRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftotext", name)
		return []byte("  SHOP NAME  \n\nTotal   120.00\n\f"), nil, nil
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "bill.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 1, res.Pages)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, "SHOP NAME", res.Lines[0].Text)
	assert.Equal(t, "Total 120.00", res.Lines[1].Text)
	assert.Equal(t, -1, res.Lines[1].Top)
}

func TestExtract_PDFFallsBackToOCR(t *testing.T) {
	r := &fakeRunner{}
	r.run = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("\f"), nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png"} {
				require.NoError(t, os.WriteFile(prefix+p, []byte("png"), 0o644))
			}
			return nil, nil, nil
		default:
			return []byte(tsvHeader + tsvRow(1, 1, 1, 1, 1, 5, "90", "page")), nil, nil
		}
	}
	e := NewExtractor(Config{}, nil, WithRunner(r))

	res, err := e.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 1, res.Lines[0].Page)
	assert.Equal(t, 2, res.Lines[1].Page)
	assert.Equal(t, 1, res.Lines[1].Index)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor(Config{}, nil, WithRunner(&fakeRunner{}))
	_, err := e.Extract(context.Background(), "notes.docx")
	require.Error(t, err)
}

func TestExtract_HEICWithoutConverter(t *testing.T) {
	e := NewExtractor(Config{ArtifactCacheDir: t.TempDir()}, nil, WithRunner(&fakeRunner{}))
	_, err := e.Extract(context.Background(), "photo.heic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEIC not supported")
}

func TestNormalize(t *testing.T) {
	in := "Rice\t\t120.00  \r\n-----\r\n\n\n\nTotal  120.00 "
	assert.Equal(t, "Rice 120.00\n\nTotal 120.00", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestPreprocess_ResizesToTargetHeight(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	require.NoError(t, imaging.Save(imaging.New(100, 50, color.White), src))

	e := NewExtractor(Config{ArtifactCacheDir: dir, TargetHeight: 200}, nil)
	out, cleanup, err := e.preprocess(src)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dy())
	assert.Equal(t, 400, img.Bounds().Dx())
}

func TestHeuristicConfidence(t *testing.T) {
	low := heuristicConfidence("hello")
	high := heuristicConfidence("Date 2026-01-02 Total Rs. 1,200.00")
	assert.Less(t, low, high)
	assert.LessOrEqual(t, high, float32(1.0))
}

func TestExecRunner_Errors(t *testing.T) {
	ctx := context.Background()
	_, _, err := execRunner{}.Run(ctx, "definitely-not-an-ocr-tool", slog.Default())
	require.ErrorIs(t, err, ErrToolMissing)

	if _, lookErr := exec.LookPath("sh"); lookErr != nil {
		t.Skip("sh not available")
	}
	_, stderr, err := execRunner{}.Run(ctx, "sh", slog.Default(), "-c", "echo 'Error opening data file' >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error opening data file")
	assert.Contains(t, string(stderr), "Error opening data file")

	out, _, err := execRunner{}.Run(ctx, "sh", slog.Default(), "-c", "printf ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "ab...(truncated)", clip("abcdef", 2))
	// never splits the two-byte rune
	assert.Equal(t, "a...(truncated)", clip("aéz", 2))
}
