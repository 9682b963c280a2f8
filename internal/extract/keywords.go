package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// fold lowercases s with full Unicode case folding.
func fold(s string) string {
	return folder.String(s)
}

type matchMode int

const (
	// matchContains matches a keyword anywhere in the line ("total" hits
	// "SUBTOTAL"). Used where OCR tends to glue words together.
	matchContains matchMode = iota
	// matchWord matches whole words only ("id" does not hit "BIDDING").
	matchWord
)

// keywordSet is a compiled, case-insensitive keyword list.
type keywordSet struct {
	mode     matchMode
	words    []string
	wordExpr *regexp.Regexp
}

func newKeywordSet(keywords []string, mode matchMode) keywordSet {
	ks := keywordSet{mode: mode}
	var ascii []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if mode == matchWord && isASCII(k) {
			ascii = append(ascii, wordPattern(k))
			continue
		}
		ks.words = append(ks.words, fold(k))
	}
	if len(ascii) > 0 {
		ks.wordExpr = regexp.MustCompile(`(?i)\b(?:` + strings.Join(ascii, "|") + `)\b`)
	}
	return ks
}

// wordPattern quotes k and lets internal spaces match any run of
// whitespace, so "sub total" also hits "SUB  TOTAL".
func wordPattern(k string) string {
	parts := strings.Fields(k)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

func (ks keywordSet) empty() bool {
	return len(ks.words) == 0 && ks.wordExpr == nil
}

// Match reports whether line contains any keyword.
func (ks keywordSet) Match(line string) bool {
	if ks.wordExpr != nil && ks.wordExpr.MatchString(line) {
		return true
	}
	if len(ks.words) == 0 {
		return false
	}
	f := fold(line)
	for _, w := range ks.words {
		if strings.Contains(f, w) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
