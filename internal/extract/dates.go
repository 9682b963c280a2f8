package extract

import (
	"regexp"
	"strings"
	"time"
)

var (
	reDateSeparators = regexp.MustCompile(`\s*[-/.,।年月]\s*|\s+`)
	reOrdinalSuffix  = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	reMonthName      = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`)
)

// extractDate runs the keyword-anchored pass, then the unanchored pass.
func (e *Engine) extractDate(lines []TextLine) *time.Time {
	corrected := make([]string, len(lines))
	for i, l := range lines {
		corrected[i] = e.correctDateTokens(l.Text)
	}

	for i, l := range lines {
		if !e.rules.dateKeywords.Match(l.Text) {
			continue
		}
		if t, ok := e.dateInLine(corrected[i]); ok {
			return &t
		}
	}
	for _, text := range corrected {
		if t, ok := e.dateInLine(text); ok {
			return &t
		}
	}
	return nil
}

// correctDateTokens applies the confusable table to ASCII words made only of
// digits and confusable glyphs that contain at least one real digit, such
// as "2O26" or "l3". Ordinary words are left alone.
func (e *Engine) correctDateTokens(s string) string {
	conf := e.rules.numeric.confusables
	return asciiWord.ReplaceAllStringFunc(s, func(w string) string {
		hasDigit := false
		for _, r := range w {
			if r >= '0' && r <= '9' {
				hasDigit = true
				continue
			}
			if _, ok := conf[r]; !ok {
				return w
			}
		}
		if !hasDigit {
			return w
		}
		return e.rules.numeric.substitute(w)
	})
}

// dateInLine tries every pattern in order; the first one whose match parses
// wins.
func (e *Engine) dateInLine(s string) (time.Time, bool) {
	for _, re := range e.rules.datePatterns {
		for _, m := range re.FindAllString(s, -1) {
			if t, ok := e.parseDate(m); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// parseDate canonicalizes a candidate to "/"-separated form and tries each
// layout in order.
func (e *Engine) parseDate(candidate string) (time.Time, bool) {
	s := strings.TrimSpace(candidate)
	s = strings.TrimSuffix(s, "日")
	s = reOrdinalSuffix.ReplaceAllString(s, "$1")
	s = reMonthName.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(m[:1]) + strings.ToLower(m[1:3])
	})
	s = strings.Trim(reDateSeparators.ReplaceAllString(s, "/"), "/")

	for _, layout := range e.rules.dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return e.toGregorian(t), true
	}
	return time.Time{}, false
}

// toGregorian shifts years inside the regional-calendar band back by the
// configured offset. Month and day are kept; the day is clamped to the
// length of the resulting month. This approximates the calendar difference
// and does not perform real calendar arithmetic.
func (e *Engine) toGregorian(t time.Time) time.Time {
	cal := e.rules.calendar
	y := t.Year()
	if !cal.Enabled || y <= e.now().Year()+cal.Margin || y >= cal.UpperBound {
		return time.Date(y, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	ny := y - cal.Offset
	d := t.Day()
	if last := daysIn(t.Month(), ny); d > last {
		d = last
	}
	return time.Date(ny, t.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
