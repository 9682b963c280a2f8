package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractItems(t *testing.T) {
	e := newTestEngine(t, nil)

	items := e.Extract(lines(
		"BIG MART",
		"Date: 01/02/2026",
		"1) Rice 120.00",
		"2. Cooking Oil Rs 80.00",
		"* Lentils: 95,50",
		"VAT 13.00",
		"ab 10.00",
		"Laptop 15000.00",
		"TOTAL 295.50",
		"Sugar 60.00",
	)).LineItems

	require.Len(t, items, 3)
	assert.Equal(t, "Rice", items[0].Description)
	assert.Equal(t, "120.00", items[0].Amount.StringFixed(2))
	assert.Equal(t, "Cooking Oil", items[1].Description)
	assert.Equal(t, "80.00", items[1].Amount.StringFixed(2))
	assert.Equal(t, "Lentils", items[2].Description)
	assert.Equal(t, "95.50", items[2].Amount.StringFixed(2))
}

func TestExtractItems_StopsAtTotalsSection(t *testing.T) {
	e := newTestEngine(t, nil)
	items := e.Extract(lines("Sub Total 300.00", "Rice 120.00")).LineItems
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestCleanDescription(t *testing.T) {
	tests := map[string]string{
		"1) Rice":     "Rice",
		"12 Eggs":     "Eggs",
		"- Tea -":     "Tea",
		"• Milk @":    "Milk",
		"Cheese Box ": "Cheese Box",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanDescription(in), in)
	}
}
