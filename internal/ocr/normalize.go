package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`^\s*[_\-=~]{3,}\s*$`)
)

// Normalize collapses noisy whitespace and drops ruler lines such as
// "-----". Line breaks are kept; digits and letters are never rewritten.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimRight(l, " ")
		if reBoxNoise.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	s = strings.Join(kept, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// normalizeLines applies Normalize per line and drops the ones left empty.
func normalizeLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.Text = Normalize(l.Text)
		if l.Text == "" {
			continue
		}
		l.Index = len(out)
		out = append(out, l)
	}
	return out
}
