package extract

import (
	"regexp"
)

type currencyMatcher struct {
	code     string
	patterns []*regexp.Regexp
}

type currencyResult struct {
	code     string
	detected bool
	hits     int
}

// detectCurrency counts, per currency, the lines matching any of its
// patterns. The highest count wins; ties go to the currency registered
// first. With no hits the configured default is returned undetected.
func (e *Engine) detectCurrency(lines []TextLine) currencyResult {
	best := currencyResult{code: e.rules.defaultCurrency}
	for _, cm := range e.rules.currencies {
		hits := 0
		for _, l := range lines {
			for _, re := range cm.patterns {
				if re.MatchString(l.Text) {
					hits++
					break
				}
			}
		}
		if hits > best.hits {
			best = currencyResult{code: cm.code, detected: true, hits: hits}
		}
	}
	return best
}
