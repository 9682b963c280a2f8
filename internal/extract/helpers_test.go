package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, mutate func(*Rules), opts ...Option) *Engine {
	t.Helper()
	r := DefaultRules()
	if mutate != nil {
		mutate(&r)
	}
	e, err := NewEngine(r, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
	require.NoError(t, err)
	return e
}

func lines(texts ...string) []TextLine {
	return LinesFromStrings(texts)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
