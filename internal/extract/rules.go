package extract

import (
	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
)

// Date orders for ambiguous numeric dates such as 01/02/2026.
const (
	DateOrderMDY = "MDY"
	DateOrderDMY = "DMY"
)

// Rules is the data-driven configuration of the engine. Nothing in the
// extractors hardcodes a keyword, pattern or threshold; they all come from
// here so deployments can tune them without code changes.
type Rules struct {
	Currencies      []CurrencyRule    `yaml:"currencies" json:"currencies"`
	DefaultCurrency string            `yaml:"default_currency" json:"default_currency"`
	Confusables     map[string]string `yaml:"confusables" json:"confusables"`
	Dates           DateRules         `yaml:"dates" json:"dates"`
	Calendar        CalendarRules     `yaml:"calendar" json:"calendar"`
	Merchant        MerchantRules     `yaml:"merchant" json:"merchant"`
	Amount          AmountRules       `yaml:"amount" json:"amount"`
	Items           ItemRules         `yaml:"items" json:"items"`
	Weights         ConfidenceWeights `yaml:"weights" json:"weights"`
	ReceiptTypes    []ReceiptTypeRule `yaml:"receipt_types" json:"receipt_types"`
}

// CurrencyRule maps one currency to the regular expressions that detect it
// (matched case-insensitively, counted once per line) and the literal
// tokens that may prefix an amount.
type CurrencyRule struct {
	Code     string   `yaml:"code" json:"code"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Tokens   []string `yaml:"tokens" json:"tokens"`
}

// DateRules configures date extraction. Layouts are Go reference layouts
// using "/" as the only separator; candidates are canonicalized to that form
// before parsing.
type DateRules struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Layouts  []string `yaml:"layouts" json:"layouts"`
	// Order decides ambiguous numeric dates such as 01/02/2026. The default
	// is month-first; set "DMY" for day-first receipts.
	Order string `yaml:"order" json:"order"`
}

// CalendarRules configures the regional-calendar conversion. Years greater
// than the current year plus Margin and below UpperBound are shifted back by
// Offset years. This is an approximation: month and day are kept as printed.
type CalendarRules struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	Offset     int  `yaml:"offset" json:"offset"`
	Margin     int  `yaml:"margin" json:"margin"`
	UpperBound int  `yaml:"upper_bound" json:"upper_bound"`
}

type MerchantRules struct {
	IssuedByLabels   []string             `yaml:"issued_by_labels" json:"issued_by_labels"`
	HeadLines        int                  `yaml:"head_lines" json:"head_lines"`
	TailLines        int                  `yaml:"tail_lines" json:"tail_lines"`
	NoiseKeywords    []string             `yaml:"noise_keywords" json:"noise_keywords"`
	EntityKeywords   []string             `yaml:"entity_keywords" json:"entity_keywords"`
	ScannerArtifacts []string             `yaml:"scanner_artifacts" json:"scanner_artifacts"`
	Corrections      []MerchantCorrection `yaml:"corrections" json:"corrections"`
}

// MerchantCorrection rewrites known OCR misreads of a merchant name.
type MerchantCorrection struct {
	Canonical string   `yaml:"canonical" json:"canonical"`
	Variants  []string `yaml:"variants" json:"variants"`
}

// AmountRules configures total detection. TailFraction is the share of
// lines, counted from the bottom, scanned by the positional fallback.
type AmountRules struct {
	TotalKeywords    []string `yaml:"total_keywords" json:"total_keywords"`
	TailFraction     float64  `yaml:"tail_fraction" json:"tail_fraction"`
	KeywordWeight    float64  `yaml:"keyword_weight" json:"keyword_weight"`
	PositionalWeight float64  `yaml:"positional_weight" json:"positional_weight"`
	NumericWeight    float64  `yaml:"numeric_weight" json:"numeric_weight"`
	MinNumericAmount float64  `yaml:"min_numeric_amount" json:"min_numeric_amount"`
	MaxTotal         float64  `yaml:"max_total" json:"max_total"`
}

type ItemRules struct {
	NoiseKeywords     []string `yaml:"noise_keywords" json:"noise_keywords"`
	StopKeywords      []string `yaml:"stop_keywords" json:"stop_keywords"`
	MaxItemAmount     float64  `yaml:"max_item_amount" json:"max_item_amount"`
	MinDescriptionLen int      `yaml:"min_description_len" json:"min_description_len"`
}

// ConfidenceWeights are added for every resolved field; the sum is capped at 1.
type ConfidenceWeights struct {
	Date     float64 `yaml:"date" json:"date"`
	Amount   float64 `yaml:"amount" json:"amount"`
	Merchant float64 `yaml:"merchant" json:"merchant"`
	Currency float64 `yaml:"currency" json:"currency"`
}

// ReceiptTypeRule scores a receipt type by how many of its keywords occur in
// the text. The highest score wins; ties go to the earlier rule.
type ReceiptTypeRule struct {
	Type     string   `yaml:"type" json:"type"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultRules returns the built-in tables. The result is a fresh value the
// caller may modify.
func DefaultRules() Rules {
	return Rules{
		Currencies: []CurrencyRule{
			{Code: string(constants.HKD), Patterns: []string{`HK\$`, `\bHKD\b`, `港币`, `港幣`}, Tokens: []string{"HK$", "HKD"}},
			{Code: string(constants.CNY), Patterns: []string{`¥`, `\bCNY\b`, `\bRMB\b`, `元`, `\bCHY\b`, `人民币`}, Tokens: []string{"CNY", "RMB", "¥", "元"}},
			{Code: string(constants.USD), Patterns: []string{`\bUSD\b`, `US\$`, `(?:^|[^A-Za-z])\$`}, Tokens: []string{"USD", "US$", "$"}},
			{Code: string(constants.EUR), Patterns: []string{`€`, `\bEUR\b`}, Tokens: []string{"EUR", "€"}},
			{Code: string(constants.GBP), Patterns: []string{`£`, `\bGBP\b`}, Tokens: []string{"GBP", "£"}},
			{Code: string(constants.JPY), Patterns: []string{`\bJPY\b`, `円`, `¥`}, Tokens: []string{"JPY", "円"}},
			{Code: string(constants.NPR), Patterns: []string{`\bRs\.?`, `\bNPR\b`, `रू`, `\bNRs\b`, `रु`}, Tokens: []string{"NRs", "Rs.", "Rs", "NPR", "रू", "रु"}},
		},
		DefaultCurrency: string(constants.DefaultCurrency),
		Confusables: map[string]string{
			"O": "0", "o": "0", "D": "0", "Q": "0",
			"I": "1", "l": "1", "|": "1",
			"S": "5", "s": "5",
			"Z": "2", "z": "2",
			"B": "8",
			"G": "6",
			"g": "9",
			"T": "7",
		},
		Dates: DateRules{
			Keywords: []string{"date", "dated", "bill date", "invoice date", "printed on", "miti", "मिति", "日期"},
			Patterns: []string{
				`\b\d{4}\s*[-/.年।]\s*\d{1,2}\s*[-/.月।]\s*\d{1,2}\s*日?`,
				`\b\d{1,2}[-/.।]\d{1,2}[-/.।]\d{4}\b`,
				`\b\d{1,2}[-/.।]\d{1,2}[-/.।]\d{2}\b`,
				`(?i)\b\d{1,2}(?:st|nd|rd|th)?[\s\-/.]*(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[\s\-/.,]*\d{2,4}\b`,
				`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`,
			},
			Layouts: []string{
				"2006/1/2",
				"1/2/2006",
				"2/1/2006",
				"1/2/06",
				"2/1/06",
				"2/Jan/2006",
				"Jan/2/2006",
				"2/Jan/06",
			},
			Order: DateOrderMDY,
		},
		Calendar: CalendarRules{
			Enabled:    true,
			Offset:     57,
			Margin:     2,
			UpperBound: 2150,
		},
		Merchant: MerchantRules{
			IssuedByLabels: []string{"issued by", "sold by"},
			HeadLines:      5,
			TailLines:      5,
			NoiseKeywords: []string{
				"total", "subtotal", "tax", "date", "tel", "telephone", "phone", "mobile", "fax", "email",
				"receipt", "cash", "card", "change", "balance", "due", "paid", "amount", "time",
				"estimate", "ksmai", "kstimate", "stimate", "invoice", "memo", "served", "order", "table",
				"pan", "vat", "bill", "id", "user", "sale", "copy", "customer", "duplicate", "terminal",
				"auth", "welcome", "thank", "address", "www", "qty", "rate",
			},
			EntityKeywords: []string{
				"ltd", "limited", "inc", "corp", "co", "company", "store", "stores", "restaurant", "shop",
				"cafe", "hotel", "mall", "market", "mart", "pvt", "kitchen", "pasal", "bhandar",
				"supermarket", "traders", "enterprises", "suppliers", "bakery", "pharmacy",
			},
			ScannerArtifacts: []string{"scanned by", "scanned with", "camscanner", "cam scanner", "adobe scan"},
			Corrections: []MerchantCorrection{
				{Canonical: "Big Mart", Variants: []string{"BIG MART", "BlG MART", "B1G MART", "DIG MART", "BIG HART"}},
				{Canonical: "Bhat-Bhateni", Variants: []string{"BHAT-BHATENI", "BHAT BHATENI", "B HAT BHAT ENI"}},
			},
		},
		Amount: AmountRules{
			TotalKeywords: []string{
				"total", "amount", "sum", "due", "pay", "balance", "grand total", "net", "tender",
				"jamma", "जम्मा", "合计", "总计",
			},
			TailFraction:     0.4,
			KeywordWeight:    1.0,
			PositionalWeight: 0.7,
			NumericWeight:    0.5,
			MinNumericAmount: 1.0,
			MaxTotal:         100000,
		},
		Items: ItemRules{
			NoiseKeywords: []string{
				"total", "subtotal", "tax", "date", "amount", "due", "thank", "thanks", "visit", "hscode",
				"gst", "vat", "net", "change", "cash", "card", "phone", "tel", "mobile", "discount",
				"balance", "paid", "tender", "rounding", "invoice", "pan",
			},
			StopKeywords: []string{
				"total", "subtotal", "sub total", "sub-total", "grand total", "net total", "amount due",
				"balance due", "net amount", "tender", "जम्मा",
			},
			MaxItemAmount:     10000,
			MinDescriptionLen: 3,
		},
		Weights: ConfidenceWeights{
			Date:     0.25,
			Amount:   0.30,
			Merchant: 0.25,
			Currency: 0.20,
		},
		ReceiptTypes: []ReceiptTypeRule{
			{Type: ReceiptTypeInvoice, Keywords: []string{"invoice", "bill to", "payment due", "invoice no"}},
			{Type: ReceiptTypeReceipt, Keywords: []string{"receipt", "thank you", "served by", "cashier"}},
			{Type: ReceiptTypeOrder, Keywords: []string{"order", "delivery", "purchase order", "shipping"}},
		},
	}
}
