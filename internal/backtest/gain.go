// Package backtest measures how a ranked score list performed between a buy
// date and a sell date, next to a set of index tickers.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/scoring"
)

// ErrNoPrice means no close was found near a requested date.
var ErrNoPrice = errors.New("no price available")

// DefaultIndexTickers are the benchmarks a run is compared against.
var DefaultIndexTickers = []string{"qqq", "spy"}

// PriceSource returns the close at or before date, or 0 when unavailable.
type PriceSource interface {
	GetPrice(ctx context.Context, ticker string, date time.Time) (float64, error)
}

// Window is a buy and sell date pair.
type Window struct {
	Buy  time.Time `json:"buy"`
	Sell time.Time `json:"sell"`
}

func (w Window) Validate() error {
	if w.Buy.IsZero() || w.Sell.IsZero() {
		return fmt.Errorf("buy and sell dates are required")
	}
	if w.Sell.Before(w.Buy) {
		return fmt.Errorf("sell date %s is before buy date %s", w.Sell.Format("2006-01-02"), w.Buy.Format("2006-01-02"))
	}
	return nil
}

// Correlator computes realized returns over a price source.
type Correlator struct {
	prices PriceSource
}

func New(prices PriceSource) *Correlator {
	return &Correlator{prices: prices}
}

// GainFromBuyAndSell returns the fractional change (sell - buy) / buy. A
// missing buy price is ErrNoPrice; a missing sell price counts as 0, a gain
// of -1.
func (c *Correlator) GainFromBuyAndSell(ctx context.Context, ticker string, buy, sell time.Time) (float64, error) {
	buyPrice, err := c.prices.GetPrice(ctx, ticker, buy)
	if err != nil {
		return 0, fmt.Errorf("buy price for %s: %w", ticker, err)
	}
	if buyPrice == 0 {
		return 0, fmt.Errorf("%w: %s on %s", ErrNoPrice, ticker, buy.Format("2006-01-02"))
	}

	sellPrice, err := c.prices.GetPrice(ctx, ticker, sell)
	if err != nil {
		return 0, fmt.Errorf("sell price for %s: %w", ticker, err)
	}

	return (sellPrice - buyPrice) / buyPrice, nil
}

// Row is one ticker's outcome. Err is set when the gain could not be computed.
type Row struct {
	Entry scoring.ScoreEntry
	Gain  float64
	Err   error
}

func (r Row) Priced() bool { return r.Err == nil }

// Result aggregates a window over the ranked list and the index tickers.
// Averages are unweighted over every row; unpriced rows add 0 to the sum.
type Result struct {
	Window       Window
	Rows         []Row
	Average      float64
	Priced       int
	Index        []Row
	IndexAverage float64
	IndexPriced  int
}

// NoMatches reports an empty ranked list.
func (r Result) NoMatches() bool { return len(r.Rows) == 0 }

// Skipped counts ranked rows without a gain.
func (r Result) Skipped() int { return len(r.Rows) - r.Priced }

// Evaluate prices every entry and index ticker over w.
func (c *Correlator) Evaluate(ctx context.Context, entries []scoring.ScoreEntry, w Window, indexTickers []string) Result {
	res := Result{Window: w}

	res.Rows, res.Average, res.Priced = c.rows(ctx, entries, w)

	index := make([]scoring.ScoreEntry, len(indexTickers))
	for i, t := range indexTickers {
		index[i] = scoring.ScoreEntry{Ticker: t}
	}
	res.Index, res.IndexAverage, res.IndexPriced = c.rows(ctx, index, w)

	log.Info().
		Int("rows", len(res.Rows)).
		Int("priced", res.Priced).
		Float64("average_gain", res.Average).
		Float64("index_average_gain", res.IndexAverage).
		Msg("backtest evaluated")
	return res
}

func (c *Correlator) rows(ctx context.Context, entries []scoring.ScoreEntry, w Window) ([]Row, float64, int) {
	rows := make([]Row, 0, len(entries))
	var sum float64
	priced := 0
	for _, e := range entries {
		gain, err := c.GainFromBuyAndSell(ctx, e.Ticker, w.Buy, w.Sell)
		if err != nil {
			log.Info().Str("ticker", e.Ticker).Err(err).Msg("gain unavailable")
		} else {
			sum += gain
			priced++
		}
		rows = append(rows, Row{Entry: e, Gain: gain, Err: err})
	}
	if len(rows) == 0 {
		return rows, 0, 0
	}
	return rows, sum / float64(len(rows)), priced
}
