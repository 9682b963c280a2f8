package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// compiledRules is the immutable, ready-to-match form of Rules. One value is
// shared by every extraction an Engine runs.
type compiledRules struct {
	defaultCurrency string
	currencies      []currencyMatcher
	tokenCurrency   map[string]string
	numeric         numericNormalizer

	dateKeywords keywordSet
	datePatterns []*regexp.Regexp
	dateLayouts  []string
	calendar     CalendarRules

	issuedBy         *regexp.Regexp
	headLines        int
	tailLines        int
	merchantNoise    keywordSet
	entityKeywords   keywordSet
	scannerArtifacts keywordSet
	corrections      []MerchantCorrection

	totalKeywords keywordSet
	amountRe      *regexp.Regexp
	amount        AmountRules

	itemNoise keywordSet
	itemStop  keywordSet
	itemRe    *regexp.Regexp
	items     ItemRules

	weights      ConfidenceWeights
	receiptTypes []receiptTypeMatcher
}

type receiptTypeMatcher struct {
	typ      string
	keywords []string
}

const amountNumber = `\d{1,3}(?:[,.']\d{3})+[.,][0-9Oo]{2}|\d[0-9Oo]*[.,][0-9Oo]{2}`

const itemPrice = `\d{1,3}(?:,\d{3})+[.,]\d{2}|\d+[.,]\d{2}`

// looseNumber backs the last-resort total fallback; it accepts integers.
var looseNumber = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d{1,7}(?:[.,]\d{1,2})?)\b`)

// asciiWord finds the tokens eligible for confusable correction in dates.
var asciiWord = regexp.MustCompile(`[A-Za-z0-9|]+`)

func compileRules(r Rules) (*compiledRules, error) {
	if err := validateRules(r); err != nil {
		return nil, err
	}

	c := &compiledRules{
		defaultCurrency: r.DefaultCurrency,
		tokenCurrency:   map[string]string{},
		dateLayouts:     orderLayouts(r.Dates.Layouts, r.Dates.Order),
		calendar:        r.Calendar,
		headLines:       r.Merchant.HeadLines,
		tailLines:       r.Merchant.TailLines,
		amount:          r.Amount,
		items:           r.Items,
		weights:         r.Weights,
	}

	var tokens []string
	for _, cr := range r.Currencies {
		cm := currencyMatcher{code: cr.Code}
		for _, p := range cr.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, configError(fmt.Sprintf("currency %s pattern %q", cr.Code, p), err)
			}
			cm.patterns = append(cm.patterns, re)
		}
		c.currencies = append(c.currencies, cm)
		for _, t := range cr.Tokens {
			// first registration wins for tokens shared by two currencies
			if _, dup := c.tokenCurrency[fold(t)]; !dup {
				c.tokenCurrency[fold(t)] = cr.Code
			}
			tokens = append(tokens, t)
		}
	}

	confusables := make(map[rune]rune, len(r.Confusables))
	for k, v := range r.Confusables {
		kr, _ := utf8.DecodeRuneInString(k)
		vr, _ := utf8.DecodeRuneInString(v)
		confusables[kr] = vr
	}
	c.numeric = newNumericNormalizer(confusables, tokens)

	c.dateKeywords = newKeywordSet(r.Dates.Keywords, matchContains)
	for _, p := range r.Dates.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, configError(fmt.Sprintf("date pattern %q", p), err)
		}
		c.datePatterns = append(c.datePatterns, re)
	}

	if len(r.Merchant.IssuedByLabels) > 0 {
		labels := make([]string, 0, len(r.Merchant.IssuedByLabels))
		for _, l := range r.Merchant.IssuedByLabels {
			labels = append(labels, wordPattern(l))
		}
		c.issuedBy = regexp.MustCompile(`(?i)\b(?:` + strings.Join(labels, "|") + `)\b\s*[:\-]?\s*(.*)$`)
	}
	c.merchantNoise = newKeywordSet(r.Merchant.NoiseKeywords, matchWord)
	c.entityKeywords = newKeywordSet(r.Merchant.EntityKeywords, matchWord)
	c.scannerArtifacts = newKeywordSet(r.Merchant.ScannerArtifacts, matchContains)
	for _, mc := range r.Merchant.Corrections {
		folded := MerchantCorrection{Canonical: mc.Canonical}
		for _, v := range mc.Variants {
			folded.Variants = append(folded.Variants, fold(strings.TrimSpace(v)))
		}
		c.corrections = append(c.corrections, folded)
	}

	c.totalKeywords = newKeywordSet(r.Amount.TotalKeywords, matchContains)
	tokenGroup := ""
	if alt := tokenAlternation(tokens); alt != "" {
		tokenGroup = `(?:(` + alt + `)\s*)?`
	} else {
		tokenGroup = `()`
	}
	c.amountRe = regexp.MustCompile(`(?i)` + tokenGroup + `(` + amountNumber + `)`)

	c.itemNoise = newKeywordSet(r.Items.NoiseKeywords, matchWord)
	c.itemStop = newKeywordSet(r.Items.StopKeywords, matchWord)
	c.itemRe = regexp.MustCompile(`(?i)^(.*?)\s*` + tokenGroup + `(` + itemPrice + `)$`)

	for _, rt := range r.ReceiptTypes {
		m := receiptTypeMatcher{typ: rt.Type}
		for _, k := range rt.Keywords {
			m.keywords = append(m.keywords, fold(k))
		}
		c.receiptTypes = append(c.receiptTypes, m)
	}
	return c, nil
}

// orderLayouts moves the day-first numeric layouts ahead of the month-first
// ones when order is DMY. Other layouts keep their position.
func orderLayouts(layouts []string, order string) []string {
	if order != DateOrderDMY {
		return layouts
	}
	var dayFirst []string
	for _, l := range layouts {
		if strings.HasPrefix(l, "2/1/") {
			dayFirst = append(dayFirst, l)
		}
	}
	out := make([]string, 0, len(layouts))
	inserted := false
	for _, l := range layouts {
		if strings.HasPrefix(l, "2/1/") {
			continue
		}
		if strings.HasPrefix(l, "1/2/") && !inserted {
			out = append(out, dayFirst...)
			inserted = true
		}
		out = append(out, l)
	}
	if !inserted {
		return layouts
	}
	return out
}
