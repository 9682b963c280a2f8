package extract

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// classify returns the receipt type with the most keyword hits, or
// ReceiptTypeGeneral when nothing matches.
func (e *Engine) classify(lines []TextLine) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	content := fold(strings.Join(texts, " "))

	best, bestScore := ReceiptTypeGeneral, 0
	for _, rt := range e.rules.receiptTypes {
		score := 0
		for _, k := range rt.keywords {
			if strings.Contains(content, k) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = rt.typ, score
		}
	}
	return best
}

// describe builds a short human readable summary of the record.
func describe(merchant *string, items []LineItem) string {
	caser := cases.Title(language.English)
	switch {
	case len(items) > 0:
		return "Receipt from " + caser.String(items[0].Description) + "..."
	case merchant != nil:
		return "Receipt from " + *merchant
	default:
		return "Receipt"
	}
}
