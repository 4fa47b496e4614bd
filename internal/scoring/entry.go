// Package scoring ranks tickers by fundamentals: it turns per-year statement
// history into a ScoreEntry per ticker, filters the rows against range
// predicates and sorts what survives.
package scoring

import (
	"sort"

	"github.com/sawpanic/edgarscore/internal/financials"
)

// ScoreEntry is one ranked row. Every metric falls back to 0 on its own when
// upstream data is partial.
type ScoreEntry struct {
	Ticker            string  `json:"ticker"`
	GrossProfitGrowth float64 `json:"grossProfitGrowth"`
	IncomeGrowth      float64 `json:"incomeGrowth"`
	RnDRatio          float64 `json:"RnDRatio"`
	CashPerDebt       float64 `json:"cashPerDebt"`
	NetIncome         float64 `json:"netIncome"`
	MktCap            float64 `json:"mktCap"`
}

// FiscalYear joins the statements filed for one fiscal year. Either side may
// be nil when that statement was not available.
type FiscalYear struct {
	Date         string
	Income       *financials.IncomeStatement
	BalanceSheet *financials.BalanceSheetStatement
}

// TickerData is the statement history of one ticker, keyed by fiscal year and
// kept in ascending date order.
type TickerData struct {
	Ticker  string
	Profile []financials.CompanyProfile
	Years   []FiscalYear
}

// IncomeList returns the income statements in chronological order.
func (td TickerData) IncomeList() []financials.IncomeStatement {
	out := make([]financials.IncomeStatement, 0, len(td.Years))
	for _, y := range td.Years {
		if y.Income != nil {
			out = append(out, *y.Income)
		}
	}
	return out
}

// BalanceSheetList returns the balance sheets in chronological order.
func (td TickerData) BalanceSheetList() []financials.BalanceSheetStatement {
	out := make([]financials.BalanceSheetStatement, 0, len(td.Years))
	for _, y := range td.Years {
		if y.BalanceSheet != nil {
			out = append(out, *y.BalanceSheet)
		}
	}
	return out
}

// Year returns the fiscal year with the given date.
func (td TickerData) Year(date string) (FiscalYear, bool) {
	for _, y := range td.Years {
		if y.Date == date {
			return y, true
		}
	}
	return FiscalYear{}, false
}

// sortYears orders years by date.
func sortYears(years []FiscalYear) {
	sort.SliceStable(years, func(i, j int) bool {
		return dateBefore(years[i].Date, years[j].Date)
	})
}

// dateBefore compares parsed fiscal dates, falling back to the raw strings.
func dateBefore(a, b string) bool {
	ta, errA := ParseFiscalDate(a)
	tb, errB := ParseFiscalDate(b)
	if errA == nil && errB == nil {
		return ta.Before(tb)
	}
	return a < b
}
