package format

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1.3e12, "$1.30T"},
		{4e11, "$400.00B"},
		{2_500_000, "$2.50M"},
		{65000, "$65.00K"},
		{999.5, "$999.50"},
		{0.00012345, "$0.000123"},
		{1, "$1.00"},
		{0, "$0.00"},
		{-12.5, "-$12.50"},
		{-2_000_000, "-$2,000,000.00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Currency(tc.in), "Currency(%v)", tc.in)
	}
	assert.Equal(t, "$NaN", Currency(math.NaN()))
}

func TestCurrencyString(t *testing.T) {
	assert.Equal(t, "$65.00K", CurrencyString("65000"))
	assert.Equal(t, "$NaN", CurrencyString("bad"))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "+2.50%", Percentage(2.5))
	assert.Equal(t, "-1.10%", Percentage(-1.1))
	assert.Equal(t, "+0.00%", Percentage(0))
	assert.Equal(t, "+2.50%", PercentageString("2.5"))
	assert.Equal(t, "NaN%", PercentageString(""))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1,234,567", Count(1234567))
	assert.Equal(t, "12", Count(12))
}

func TestLastUpdated(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "Never", LastUpdated(now, time.Time{}))
	assert.Equal(t, "12s ago", LastUpdated(now, now.Add(-12*time.Second)))
	assert.Equal(t, "5m ago", LastUpdated(now, now.Add(-5*time.Minute-30*time.Second)))
	assert.Equal(t, "1:04:05 PM", LastUpdated(now, time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC)))
}
