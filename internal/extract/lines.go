package extract

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextLine is one recognized line of text in reading order. Index and Top
// are optional layout hints from the OCR collaborator; Top is -1 when the
// collaborator did not report a vertical position.
type TextLine struct {
	Text  string
	Index int
	Top   int
}

// LinesFromStrings wraps plain strings as TextLines without layout data.
func LinesFromStrings(texts []string) []TextLine {
	out := make([]TextLine, len(texts))
	for i, t := range texts {
		out[i] = TextLine{Text: t, Index: i, Top: -1}
	}
	return out
}

// LinesFromText splits raw OCR text on newlines.
func LinesFromText(raw string) []TextLine {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return LinesFromStrings(strings.Split(raw, "\n"))
}

// devanagariDigits maps ० through ९ onto ASCII digits.
var devanagariDigits = runes.Map(func(r rune) rune {
	if r >= '०' && r <= '९' {
		return '0' + (r - '०')
	}
	return r
})

// foldLine applies NFKC (full-width digits and punctuation become ASCII) and
// maps Devanagari digits to ASCII.
func foldLine(s string) string {
	t := transform.Chain(norm.NFKC, devanagariDigits)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// prepareLines returns the normalized, non-blank lines the extractors work
// on, plus the raw text. The caller's slice is not modified.
func prepareLines(in []TextLine) ([]TextLine, string) {
	raw := make([]string, len(in))
	out := make([]TextLine, 0, len(in))
	for i, l := range in {
		raw[i] = l.Text
		text := strings.TrimSpace(foldLine(l.Text))
		if text == "" {
			continue
		}
		l.Text = text
		out = append(out, l)
	}
	return out, strings.Join(raw, "\n")
}
