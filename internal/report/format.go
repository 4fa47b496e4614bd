// Package report renders score lists and backtest results as text tables or
// JSON documents.
package report

import "fmt"

// Magnitude formats v with a K/M/B suffix. Values under 1e3, negatives
// included, print with two decimals.
func Magnitude(v float64) string {
	switch {
	case v < 1e3:
		return fmt.Sprintf("%.2f", v)
	case v < 1e6:
		return fmt.Sprintf("%.0fK", v/1e3)
	case v < 1e9:
		return fmt.Sprintf("%.0fM", v/1e6)
	default:
		return fmt.Sprintf("%.0fB", v/1e9)
	}
}

// Percent formats a fractional gain as a percentage.
func Percent(gain float64) string {
	return fmt.Sprintf("%.2f%%", gain*100)
}

// GrowthPercent formats a growth multiplier as (g-1)*100 percent.
func GrowthPercent(g float64) string {
	if g == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", (g-1)*100)
}
