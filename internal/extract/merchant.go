package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// resolveMerchant tries, in order: an "issued by" label anywhere, a header
// line that looks like a business name, any digit-free header line, and a
// footer line. The first hit is passed through the correction table.
func (e *Engine) resolveMerchant(lines []TextLine) *string {
	name, ok := e.merchantFromLabel(lines)
	if !ok {
		name, ok = e.merchantFromHeader(lines)
	}
	if !ok {
		name, ok = e.merchantFromHeaderFallback(lines)
	}
	if !ok {
		name, ok = e.merchantFromFooter(lines)
	}
	if !ok {
		return nil
	}
	name = e.correctMerchant(name)
	return &name
}

func (e *Engine) merchantFromLabel(lines []TextLine) (string, bool) {
	if e.rules.issuedBy == nil {
		return "", false
	}
	for _, l := range lines {
		m := e.rules.issuedBy.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		name := trimMerchant(m[1])
		if utf8.RuneCountInString(name) >= 3 {
			return name, true
		}
	}
	return "", false
}

func (e *Engine) merchantFromHeader(lines []TextLine) (string, bool) {
	for _, l := range head(lines, e.rules.headLines) {
		if e.isMerchantNoise(l.Text) {
			continue
		}
		if e.rules.entityKeywords.Match(l.Text) || isShoutedPhrase(l.Text) {
			return trimMerchant(l.Text), true
		}
	}
	return "", false
}

// merchantFromHeaderFallback takes the first header line longer than three
// runes without digits. Noise keywords are not checked here.
func (e *Engine) merchantFromHeaderFallback(lines []TextLine) (string, bool) {
	for _, l := range head(lines, e.rules.headLines) {
		name := trimMerchant(l.Text)
		if utf8.RuneCountInString(name) <= 3 || strings.ContainsFunc(name, unicode.IsDigit) {
			continue
		}
		return name, true
	}
	return "", false
}

func (e *Engine) merchantFromFooter(lines []TextLine) (string, bool) {
	for _, l := range tail(lines, e.rules.tailLines) {
		if e.isMerchantNoise(l.Text) || e.rules.scannerArtifacts.Match(l.Text) {
			continue
		}
		if countLetters(l.Text) >= 3 {
			return trimMerchant(l.Text), true
		}
	}
	return "", false
}

// isMerchantNoise rejects short lines, lines with a noise keyword, lines
// that are mostly symbols and lines containing a date.
func (e *Engine) isMerchantNoise(s string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < 3 {
		return true
	}
	if e.rules.merchantNoise.Match(s) || e.rules.scannerArtifacts.Match(s) {
		return true
	}
	var alnum, other int
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r):
			alnum++
		default:
			other++
		}
	}
	if alnum == 0 || other > alnum {
		return true
	}
	return e.containsDate(s)
}

// correctMerchant maps known misreads to their canonical spelling. Exact
// matches are checked across the whole table before substring matches.
func (e *Engine) correctMerchant(name string) string {
	f := fold(name)
	for _, mc := range e.rules.corrections {
		if f == fold(mc.Canonical) {
			return mc.Canonical
		}
		for _, v := range mc.Variants {
			if f == v {
				return mc.Canonical
			}
		}
	}
	for _, mc := range e.rules.corrections {
		for _, v := range mc.Variants {
			if v != "" && strings.Contains(f, v) {
				return mc.Canonical
			}
		}
	}
	return name
}

// isShoutedPhrase reports an all-caps line of more than one word.
func isShoutedPhrase(s string) bool {
	if len(strings.Fields(s)) < 2 {
		return false
	}
	upper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper = true
		}
	}
	return upper
}

func trimMerchant(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) && r != ')' && r != '&'
	})
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func head(lines []TextLine, n int) []TextLine {
	if n > len(lines) {
		n = len(lines)
	}
	return lines[:n]
}

func tail(lines []TextLine, n int) []TextLine {
	if n > len(lines) {
		n = len(lines)
	}
	return lines[len(lines)-n:]
}
