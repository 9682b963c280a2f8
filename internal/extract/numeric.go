package extract

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/shopspring/decimal"
)

// numericNormalizer turns OCR-garbled amount strings into decimals.
type numericNormalizer struct {
	confusables map[rune]rune
	currencyRe  *regexp.Regexp
}

func newNumericNormalizer(confusables map[rune]rune, tokens []string) numericNormalizer {
	n := numericNormalizer{confusables: confusables}
	if len(tokens) > 0 {
		n.currencyRe = regexp.MustCompile(`(?i)(?:` + tokenAlternation(tokens) + `)`)
	}
	return n
}

// tokenAlternation quotes tokens longest first so "NRs" wins over "Rs".
func tokenAlternation(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, 0, len(sorted))
	for _, t := range sorted {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	return strings.Join(quoted, "|")
}

// substitute replaces confusable glyphs inside s.
func (n numericNormalizer) substitute(s string) string {
	if len(n.confusables) == 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if d, ok := n.confusables[r]; ok {
			return d
		}
		return r
	}, s)
}

// normalizeDecimal returns the amount encoded in s and whether anything
// parseable remained.
//
// Currency markers are removed first, then confusable glyphs are mapped to
// digits. The last comma or dot is the decimal point when exactly two digits
// follow it; every other separator is a thousands separator.
func (n numericNormalizer) normalizeDecimal(s string) (decimal.Decimal, bool) {
	s = foldLine(s)
	if n.currencyRe != nil {
		s = n.currencyRe.ReplaceAllString(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	s = n.substitute(s)

	intPart, fracPart := digitsOnly(s), ""
	if last := strings.LastIndexAny(s, ".,"); last >= 0 {
		if after := digitsOnly(s[last+1:]); len(after) == 2 {
			intPart, fracPart = digitsOnly(s[:last]), after
		}
	}
	if intPart == "" && fracPart == "" {
		return decimal.Zero, false
	}
	if intPart == "" {
		intPart = "0"
	}
	num := intPart
	if fracPart != "" {
		num += "." + fracPart
	}
	d, err := decimal.NewFromString(num)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// normalize is normalizeDecimal as a float; 0.0 when nothing parses.
func (n numericNormalizer) normalize(s string) float64 {
	d, ok := n.normalizeDecimal(s)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var defaultNormalizer = sync.OnceValue(func() numericNormalizer {
	c, err := compileRules(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c.numeric
})

// NormalizeAmount parses an OCR-garbled number with the built-in tables.
// It never fails: unparseable input yields 0.
func NormalizeAmount(s string) float64 {
	return defaultNormalizer().normalize(s)
}
