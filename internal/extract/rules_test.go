package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
)

func TestDefaultRulesCompile(t *testing.T) {
	_, err := NewEngine(DefaultRules())
	require.NoError(t, err)
}

func TestDefaultRules_MonthFirst(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, DateOrderMDY, r.Dates.Order)

	e, err := NewEngine(r)
	require.NoError(t, err)
	got := e.Extract(lines("Date: 01/02/2026")).TransactionDate
	require.NotNil(t, got)
	assert.Equal(t, day(2026, time.January, 2), *got)
}

func TestLoadRules_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `
default_currency: USD
dates:
  order: DMY
amount:
  max_total: 5000
items:
  max_item_amount: 1000
confusables:
  "b": "6"
merchant:
  corrections:
    - canonical: Himalayan Java
      variants: ["HIMALAYAN JAVA", "HlMALAYAN JAVA"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", r.DefaultCurrency)
	assert.Equal(t, DateOrderDMY, r.Dates.Order)
	assert.Equal(t, 5000.0, r.Amount.MaxTotal)
	assert.Equal(t, DefaultRules().Amount.TotalKeywords, r.Amount.TotalKeywords)
	assert.Equal(t, "6", r.Confusables["b"])
	assert.Equal(t, "0", r.Confusables["O"])
	require.Len(t, r.Merchant.Corrections, 1)

	e, err := NewEngine(r, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	rec := e.Extract(lines("HlMALAYAN JAVA", "Date: 01/02/2026", "Total 6000.00"))
	require.NotNil(t, rec.MerchantName)
	assert.Equal(t, "Himalayan Java", *rec.MerchantName)
	assert.Equal(t, day(2026, 2, 1), *rec.TransactionDate)
	assert.Nil(t, rec.TotalAmount)
	assert.Equal(t, "USD", *rec.CurrencyCode)
}

func TestParseRules_EmptyDocumentIsDefault(t *testing.T) {
	r, err := ParseRules([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), r)
}

func TestParseRules_JSON(t *testing.T) {
	r, err := ParseRules([]byte(`{"weights": {"date": 0.4, "amount": 0.3, "merchant": 0.2, "currency": 0.1}}`))
	require.NoError(t, err)
	assert.Equal(t, 0.4, r.Weights.Date)
}

func TestRulesErrors(t *testing.T) {
	tests := map[string]string{
		"malformed yaml":       "dates: [",
		"unknown key":          "colour: blue",
		"wrong type":           "merchant:\n  head_lines: many",
		"bad currency code":    "default_currency: rupee",
		"bad date order":       "dates:\n  order: YMD",
		"weight out of range":  "weights:\n  date: 1.5",
		"bad regexp":           "dates:\n  patterns: ['(\\d+']",
		"tier order":           "amount:\n  positional_weight: 1.0",
		"item above total":     "items:\n  max_item_amount: 500000",
		"confusable to letter": "confusables:\n  O: o",
		"duplicate currency":   "currencies:\n  - code: USD\n    patterns: ['\\$']\n  - code: USD\n    patterns: ['USD']",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Equal(t, "CONFIG_ERROR", common.ErrorCode(err))
		})
	}
}

func TestNewEngine_RejectsInvalidRules(t *testing.T) {
	r := DefaultRules()
	r.Weights.Amount = -0.1
	_, err := NewEngine(r)
	require.ErrorIs(t, err, ErrConfiguration)

	r = DefaultRules()
	r.Currencies = nil
	_, err = NewEngine(r)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestOrderLayouts(t *testing.T) {
	in := []string{"2006/1/2", "1/2/2006", "2/1/2006", "1/2/06", "2/1/06", "2/Jan/2006"}
	assert.Equal(t, in, orderLayouts(in, DateOrderMDY))
	assert.Equal(t,
		[]string{"2006/1/2", "2/1/2006", "2/1/06", "1/2/2006", "1/2/06", "2/Jan/2006"},
		orderLayouts(in, DateOrderDMY))
}

func TestNewEngineFromConfig(t *testing.T) {
	e, err := NewEngineFromConfig(common.ExtractionConfig{DateOrder: DateOrderDMY}, nil)
	require.NoError(t, err)
	rec := e.Extract(lines("Everest Cafe", "Date: 01/02/2026", "Total 190.00"))
	require.NotNil(t, rec.TransactionDate)
	assert.Equal(t, day(2026, 2, 1), *rec.TransactionDate)

	_, err = NewEngineFromConfig(common.ExtractionConfig{DateOrder: "YMD"}, nil)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewEngineFromConfig(common.ExtractionConfig{RulesPath: filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	require.ErrorIs(t, err, ErrConfiguration)
}
