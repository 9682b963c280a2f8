package extract

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// amountCandidate is a possible total with the tier weight it was found at.
type amountCandidate struct {
	value    decimal.Decimal
	currency string
	weight   float64
}

// extractTotal returns the best total, or nil when nothing was found or the
// best candidate is above the sanity ceiling. hint is the detected
// currency, used for candidates without an explicit marker.
func (e *Engine) extractTotal(lines []TextLine, hint string) *decimal.Decimal {
	ar := e.rules.amount

	var cands []amountCandidate
	for i := len(lines) - 1; i >= 0; i-- {
		if e.rules.totalKeywords.Match(lines[i].Text) {
			cands = append(cands, e.amountsInLine(lines[i].Text, hint, ar.KeywordWeight)...)
		}
	}

	if len(cands) == 0 {
		start := int(float64(len(lines)) * (1 - ar.TailFraction))
		for _, l := range lines[start:] {
			cands = append(cands, e.amountsInLine(l.Text, hint, ar.PositionalWeight)...)
		}
	}

	if len(cands) == 0 {
		cands = e.numericFallback(lines, hint)
	}

	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].weight != cands[j].weight {
			return cands[i].weight > cands[j].weight
		}
		return cands[i].value.GreaterThan(cands[j].value)
	})
	best := cands[0]
	if best.value.GreaterThan(decimal.NewFromFloat(ar.MaxTotal)) {
		e.logger.Debug("engine.total.discarded", "value", best.value.String(), "max_total", ar.MaxTotal)
		return nil
	}
	if best.currency != hint {
		e.logger.Debug("engine.total.currency_mismatch", "marker", best.currency, "detected", hint)
	}
	v := best.value.Round(2)
	return &v
}

// amountsInLine returns every positive amount in s.
func (e *Engine) amountsInLine(s, hint string, weight float64) []amountCandidate {
	var out []amountCandidate
	for _, idx := range e.rules.amountRe.FindAllStringSubmatchIndex(s, -1) {
		// a digit right after the match means we cut a longer number
		if idx[1] < len(s) && s[idx[1]] >= '0' && s[idx[1]] <= '9' {
			continue
		}
		v, ok := e.rules.numeric.normalizeDecimal(s[idx[4]:idx[5]])
		if !ok || !v.IsPositive() {
			continue
		}
		cur := hint
		if idx[2] >= 0 {
			if code, found := e.rules.tokenCurrency[fold(s[idx[2]:idx[3]])]; found {
				cur = code
			}
		}
		out = append(out, amountCandidate{value: v, currency: cur, weight: weight})
	}
	return out
}

// numericFallback accepts bare numbers anywhere, skipping lines that hold a
// date. Values below MinNumericAmount are not candidates; the MaxTotal
// ceiling applies to the winner like in the other tiers.
func (e *Engine) numericFallback(lines []TextLine, hint string) []amountCandidate {
	ar := e.rules.amount
	minimum := decimal.NewFromFloat(ar.MinNumericAmount)
	var out []amountCandidate
	for _, l := range lines {
		if e.containsDate(l.Text) {
			continue
		}
		for _, m := range looseNumber.FindAllString(l.Text, -1) {
			v, ok := e.rules.numeric.normalizeDecimal(strings.TrimSpace(m))
			if !ok || v.LessThan(minimum) {
				continue
			}
			out = append(out, amountCandidate{value: v, currency: hint, weight: ar.NumericWeight})
		}
	}
	return out
}

func (e *Engine) containsDate(s string) bool {
	for _, re := range e.rules.datePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
