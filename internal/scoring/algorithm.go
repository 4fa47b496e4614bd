package scoring

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/financials"
)

// ErrNoProfile means a ticker had no profile records to read market cap from.
var ErrNoProfile = errors.New("no profile data")

// Algorithm computes a score row from one ticker's statement history.
type Algorithm interface {
	Score(ticker string, td TickerData) (ScoreEntry, error)
}

// AlgorithmFunc adapts a function to Algorithm.
type AlgorithmFunc func(ticker string, td TickerData) (ScoreEntry, error)

func (f AlgorithmFunc) Score(ticker string, td TickerData) (ScoreEntry, error) {
	return f(ticker, td)
}

// Fundamentals is the reference algorithm: gross profit and net income
// growth, R&D intensity, asset coverage of liabilities, mean net income and
// market cap.
type Fundamentals struct{}

func (Fundamentals) Score(ticker string, td TickerData) (ScoreEntry, error) {
	if len(td.Profile) == 0 {
		return ScoreEntry{}, ErrNoProfile
	}

	income := td.IncomeList()
	entry := ScoreEntry{
		Ticker:            ticker,
		GrossProfitGrowth: AverageGrowth(ticker, income, financials.GrossProfit),
		IncomeGrowth:      AverageGrowth(ticker, income, financials.NetIncome),
		RnDRatio:          rndRatio(ticker, income),
		CashPerDebt:       cashPerDebt(ticker, td.BalanceSheetList()),
		NetIncome:         Average(income, financials.NetIncome),
	}

	last := td.Profile[len(td.Profile)-1]
	if last.MktCap != nil {
		entry.MktCap = *last.MktCap
	} else {
		log.Info().Str("ticker", ticker).Str("date", last.Date).Msg("market cap missing, using 0")
	}
	return entry, nil
}

// rndRatio averages RnDExpenses/OperatingExpenses over years carrying both.
func rndRatio(ticker string, income []financials.IncomeStatement) float64 {
	var sum float64
	var count int
	for _, s := range income {
		if s.RnDExpenses == nil || s.OperatingExpenses == nil {
			continue
		}
		if *s.OperatingExpenses == 0 {
			log.Info().Str("ticker", ticker).Str("date", s.Date).Msg("zero operating expenses, R&D ratio year skipped")
			continue
		}
		sum += *s.RnDExpenses / *s.OperatingExpenses
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// cashPerDebt reads the most recent balance sheet only.
func cashPerDebt(ticker string, sheets []financials.BalanceSheetStatement) float64 {
	if len(sheets) == 0 {
		return 0
	}
	last := sheets[len(sheets)-1]
	if last.TotalAssets == nil || last.TotalLiabilities == nil {
		log.Info().Str("ticker", ticker).Str("date", last.Date).Msg("assets or liabilities missing, cash per debt is 0")
		return 0
	}
	if *last.TotalLiabilities == 0 {
		log.Info().Str("ticker", ticker).Str("date", last.Date).Msg("zero liabilities, cash per debt is 0")
		return 0
	}
	return *last.TotalAssets / *last.TotalLiabilities
}
