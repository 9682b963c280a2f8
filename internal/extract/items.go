package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	reOrdinalPrefix = regexp.MustCompile(`^\d+\s*[).:\-]+\s*|^\d+\s+`)
	reSymbolPrefix  = regexp.MustCompile(`^[^\p{L}\p{N}]+`)
)

// extractItems reads "description ... price" lines in order until the
// totals section starts.
func (e *Engine) extractItems(lines []TextLine) []LineItem {
	ir := e.rules.items
	maxItem := decimal.NewFromFloat(ir.MaxItemAmount)
	items := []LineItem{}
	for _, l := range lines {
		if e.rules.itemStop.Match(l.Text) {
			break
		}
		if e.rules.itemNoise.Match(l.Text) || e.containsDate(l.Text) {
			continue
		}
		m := e.rules.itemRe.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		desc := cleanDescription(m[1])
		if utf8.RuneCountInString(desc) < ir.MinDescriptionLen || strings.Contains(fold(desc), "total") {
			continue
		}
		price, ok := e.rules.numeric.normalizeDecimal(m[3])
		if !ok || !price.IsPositive() || price.GreaterThan(maxItem) {
			continue
		}
		items = append(items, LineItem{Description: desc, Amount: price.Round(2)})
	}
	return items
}

// cleanDescription strips list numbering, bullets and trailing separators.
func cleanDescription(s string) string {
	s = strings.TrimSpace(s)
	s = reOrdinalPrefix.ReplaceAllString(s, "")
	s = reSymbolPrefix.ReplaceAllString(s, "")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':' || r == '-' || r == '.' || r == '@'
	})
}
