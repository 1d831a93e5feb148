// Package format renders numbers the way the dashboard displays them.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"admybrand-insights/backend-go/internal/models"
)

var printer = message.NewPrinter(language.English)

var suffixes = []struct {
	limit  decimal.Decimal
	suffix string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// Currency formats a USD amount: large values get a T/B/M/K suffix with two
// decimals, smaller ones a grouped dollar amount with 2 to 6 decimals.
func Currency(v float64) string {
	if math.IsNaN(v) {
		return "$NaN"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "$∞"
		}
		return "-$∞"
	}
	d := decimal.NewFromFloat(v)
	for _, s := range suffixes {
		if d.GreaterThanOrEqual(s.limit) {
			return "$" + d.Div(s.limit).StringFixed(2) + s.suffix
		}
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	amount := d.Round(6).InexactFloat64()
	return sign + "$" + printer.Sprintf("%v", number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(6)))
}

// CurrencyString formats a raw decimal string.
func CurrencyString(s string) string {
	return Currency(models.ParseDecimal(s))
}

// Percentage renders a signed change with two decimals, e.g. "+2.50%".
func Percentage(v float64) string {
	if math.IsNaN(v) {
		return "NaN%"
	}
	fixed := decimal.NewFromFloat(v).StringFixed(2)
	if v >= 0 {
		return "+" + fixed + "%"
	}
	return fixed + "%"
}

func PercentageString(s string) string {
	return Percentage(models.ParseDecimal(s))
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// LastUpdated renders the header's "last updated" label.
func LastUpdated(now, at time.Time) string {
	if at.IsZero() {
		return "Never"
	}
	diff := int(now.Sub(at) / time.Second)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < 60:
		return fmt.Sprintf("%ds ago", diff)
	case diff < 3600:
		return fmt.Sprintf("%dm ago", diff/60)
	}
	return at.Format("3:04:05 PM")
}
