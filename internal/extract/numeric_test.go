package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"945,00", 945.00},
		{"1,000", 1000.0},
		{"O12.5O", 12.50},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"12,345,678", 12345678},
		{"Rs. 1,200.00", 1200.00},
		{"रू 500", 500},
		{"$ 3.99", 3.99},
		{"１２０.００", 120.00},
		{"१२०", 120},
		{"lO5.0", 1050},
		{"", 0},
		{"abc", 0},
		{"--", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeAmount(tt.in), 1e-9)
		})
	}
}

func TestNormalizeDecimal_KeepsExactCents(t *testing.T) {
	e := newTestEngine(t, nil)
	d, ok := e.rules.numeric.normalizeDecimal("0.10")
	assert.True(t, ok)
	assert.Equal(t, "0.10", d.StringFixed(2))

	_, ok = e.rules.numeric.normalizeDecimal("no digits")
	assert.False(t, ok)
}
