// Package data serves financial facts, the ticker universe and price series
// from the Redis cache, filling misses from EDGAR and the price provider.
package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/data/cache"
	"github.com/sawpanic/edgarscore/internal/financials"
	"github.com/sawpanic/edgarscore/internal/persistence"
	"github.com/sawpanic/edgarscore/internal/providers/edgar"
	"github.com/sawpanic/edgarscore/internal/providers/prices"
)

var (
	// ErrNoFetcher is returned when a miss needs a provider that is not configured.
	ErrNoFetcher = errors.New("no fetcher configured")
	// ErrUnknownTicker is returned for tickers without a CIK mapping.
	ErrUnknownTicker = errors.New("ticker has no cik mapping")
	// ErrNoFiling is returned when the index has no annual report for a year.
	ErrNoFiling = errors.New("no annual report filed")
)

// MaxYearSpan caps the number of years one GetTickerData call may cover.
const MaxYearSpan = 50

// ErrYearRange is returned for inverted or oversized year ranges.
var ErrYearRange = errors.New("invalid year range")

// noDataKey marks a ticker-year that was looked up and has nothing to fetch,
// so later runs skip the provider.
const noDataKey = "None"

func isNoData(rec financials.RawRecord) bool {
	_, ok := rec[noDataKey]
	return ok && len(rec) == 1
}

// Cache is the cache tier. *cache.Store implements it.
type Cache interface {
	HasFinancials(ctx context.Context, ticker string, year int) (bool, error)
	StoreFinancials(ctx context.Context, ticker string, year int, facts map[string]float64) error
	GetFinancials(ctx context.Context, ticker string, period financials.Period, year int) (financials.RawRecord, error)

	StoreTickerInfo(ctx context.Context, ticker string, info cache.TickerInfo) error
	TickerCIK(ctx context.Context, ticker string) (string, error)

	StoreCIKMapping(ctx context.Context, cikToTicker map[string]string) error
	HasTickerList(ctx context.Context) (bool, error)
	TickerList(ctx context.Context) ([]string, error)

	StoreSeries(ctx context.Context, ticker string, series cache.Series, samples []cache.Sample) error
	HasPrices(ctx context.Context, ticker string) (bool, error)
	PriceAt(ctx context.Context, ticker string, date time.Time) (float64, error)
	VolumeAt(ctx context.Context, ticker string, date time.Time) (float64, error)
}

// Filings is the EDGAR fetch tier. *edgar.Client implements it.
type Filings interface {
	FetchTickerList(ctx context.Context) ([]edgar.TickerCIK, error)
	FetchYearIndex(ctx context.Context, year int) ([]persistence.IndexEntry, error)
	FetchFinancials(ctx context.Context, url string) (*edgar.Facts, error)
}

// PriceHistory is the price fetch tier. *prices.Client implements it.
type PriceHistory interface {
	History(ctx context.Context, ticker string) ([]prices.Bar, error)
}

// Option configures Services.
type Option func(*Services)

// WithFilings enables filling financial misses from EDGAR.
func WithFilings(f Filings) Option { return func(s *Services) { s.filings = f } }

// WithPriceHistory enables filling price misses.
func WithPriceHistory(p PriceHistory) Option { return func(s *Services) { s.prices = p } }

// WithIndexTickers replaces the tickers that have prices but no filings.
func WithIndexTickers(tickers ...string) Option {
	return func(s *Services) {
		s.indexTickers = make(map[string]bool, len(tickers))
		for _, t := range tickers {
			s.indexTickers[strings.ToLower(t)] = true
		}
	}
}

// Services implements scoring.DataAccess and backtest.PriceSource. Without
// fetchers it serves the cache only.
type Services struct {
	cache        Cache
	index        persistence.IndexRepo
	filings      Filings
	prices       PriceHistory
	indexTickers map[string]bool

	locks  keyedMutex
	listMu sync.Mutex
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// NewServices wires the cache and filing index with optional fetchers.
func NewServices(c Cache, index persistence.IndexRepo, opts ...Option) *Services {
	s := &Services{
		cache:        c,
		index:        index,
		indexTickers: map[string]bool{"spy": true, "qqq": true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsIndexTicker reports whether ticker is a market index proxy.
func (s *Services) IsIndexTicker(ticker string) bool {
	return s.indexTickers[strings.ToLower(ticker)]
}

// GetTickerData returns the cached facts of every year in [startYear,
// endYear], fetching missing years first. Years that remain missing are
// logged and omitted.
func (s *Services) GetTickerData(ctx context.Context, ticker string, period financials.Period, startYear, endYear int) (map[string]financials.RawRecord, error) {
	if period != financials.Year {
		return nil, fmt.Errorf("%w: %s", cache.ErrUnsupportedPeriod, period)
	}
	if endYear < startYear || endYear-startYear+1 > MaxYearSpan {
		return nil, fmt.Errorf("%w: %d to %d, at most %d years", ErrYearRange, startYear, endYear, MaxYearSpan)
	}
	if err := s.ensurePrices(ctx, ticker); err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("Price history unavailable")
	}

	out := make(map[string]financials.RawRecord, endYear-startYear+1)
	for year := startYear; year <= endYear; year++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.filings != nil && !s.IsIndexTicker(ticker) {
			if err := s.FetchFinancialsByYear(ctx, year, ticker); err != nil {
				log.Info().Err(err).Str("ticker", ticker).Int("year", year).Msg("Could not fetch financials")
			}
		}

		rec, err := s.cache.GetFinancials(ctx, ticker, period, year)
		if errors.Is(err, cache.ErrNotFound) || (err == nil && isNoData(rec)) {
			log.Error().Str("ticker", ticker).Int("year", year).Msg("Could not retrieve data")
			continue
		}
		if err != nil {
			return nil, err
		}
		key := strconv.Itoa(year)
		if _, ok := rec["date"]; !ok {
			rec["date"] = key
		}
		out[key] = rec
	}
	return out, nil
}

// FetchFinancialsByYear caches the annual report facts of ticker filed in
// year. Cached years and index tickers are skipped.
func (s *Services) FetchFinancialsByYear(ctx context.Context, year int, ticker string) error {
	if s.IsIndexTicker(ticker) {
		return nil
	}
	cached, err := s.cache.HasFinancials(ctx, ticker, year)
	if err != nil {
		return err
	}
	if cached {
		log.Debug().Str("ticker", ticker).Int("year", year).Msg("Financials already cached")
		return nil
	}
	if s.filings == nil {
		return fmt.Errorf("%w: filings", ErrNoFetcher)
	}

	if err := s.EnsureIndex(ctx, year); err != nil {
		return err
	}

	cik, err := s.cache.TickerCIK(ctx, ticker)
	if errors.Is(err, cache.ErrNotFound) {
		return s.markNoData(ctx, ticker, year, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker))
	}
	if err != nil {
		return err
	}
	entry, err := s.index.GetByCIK(ctx, cik, year)
	if errors.Is(err, persistence.ErrNotFound) {
		return s.markNoData(ctx, ticker, year, fmt.Errorf("%w: %s %d", ErrNoFiling, ticker, year))
	}
	if err != nil {
		return err
	}

	info := cache.TickerInfo{CompanyName: entry.Company, URLs: map[int]string{year: entry.URL}}
	if err := s.cache.StoreTickerInfo(ctx, ticker, info); err != nil {
		return err
	}

	facts, err := s.filings.FetchFinancials(ctx, entry.URL)
	if err != nil {
		return err
	}
	rec := facts.Record()
	if facts.SharesOutstanding > 0 && !facts.ReportDate.IsZero() {
		price, err := s.GetPrice(ctx, ticker, facts.ReportDate)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("No price for market cap")
		}
		if price > 0 {
			rec["MarketCap"] = facts.SharesOutstanding * price
		}
	}
	if len(rec) == 0 {
		log.Info().Str("ticker", ticker).Int("year", year).Msg("Filing has no facts")
		rec[noDataKey] = 0
	}
	if err := s.cache.StoreFinancials(ctx, ticker, year, rec); err != nil {
		return err
	}
	log.Info().Str("ticker", ticker).Int("year", year).Int("facts", len(rec)).Msg("Retrieved financials from SEC")
	return nil
}

// markNoData caches the no-data marker for ticker-year and returns cause.
func (s *Services) markNoData(ctx context.Context, ticker string, year int, cause error) error {
	if err := s.cache.StoreFinancials(ctx, ticker, year, map[string]float64{noDataKey: 0}); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// EnsureIndex stores the annual report index of year unless present.
func (s *Services) EnsureIndex(ctx context.Context, year int) error {
	defer s.locks.lock("index:" + strconv.Itoa(year))()

	stored, err := s.index.IsStored(ctx, year)
	if err != nil {
		return err
	}
	if stored {
		return nil
	}
	if s.filings == nil {
		return fmt.Errorf("%w: filings", ErrNoFetcher)
	}

	log.Info().Int("year", year).Msg("Index not stored, fetching from SEC")
	entries, err := s.filings.FetchYearIndex(ctx, year)
	if err != nil {
		return err
	}
	if err := s.index.Store(ctx, year, entries); err != nil {
		return err
	}
	log.Info().Int("year", year).Int("filings", len(entries)).Msg("Stored filing index")
	return nil
}

// GetTickerList returns the cached universe, fetching it from SEC first when
// absent.
func (s *Services) GetTickerList(ctx context.Context) ([]string, error) {
	s.listMu.Lock()
	defer s.listMu.Unlock()

	ok, err := s.cache.HasTickerList(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.syncTickerList(ctx); err != nil {
			return nil, err
		}
	}
	return s.cache.TickerList(ctx)
}

// SyncTickerList refreshes the universe from SEC and returns its size.
func (s *Services) SyncTickerList(ctx context.Context) (int, error) {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	return s.syncTickerList(ctx)
}

func (s *Services) syncTickerList(ctx context.Context) (int, error) {
	if s.filings == nil {
		return 0, fmt.Errorf("%w: filings", ErrNoFetcher)
	}
	list, err := s.filings.FetchTickerList(ctx)
	if err != nil {
		return 0, err
	}
	mapping := make(map[string]string, len(list))
	for _, tc := range list {
		if _, dup := mapping[tc.CIK]; !dup {
			mapping[tc.CIK] = tc.Ticker
		}
	}
	if err := s.cache.StoreCIKMapping(ctx, mapping); err != nil {
		return 0, err
	}
	log.Info().Int("tickers", len(list)).Msg("Mapped tickers to cik")
	return len(list), nil
}

// GetPrice returns the close at or before date within a week, or 0.
func (s *Services) GetPrice(ctx context.Context, ticker string, date time.Time) (float64, error) {
	if err := s.ensurePrices(ctx, ticker); err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("Price history unavailable")
	}
	return s.cache.PriceAt(ctx, ticker, date)
}

// GetVolume returns the volume at or before date within a week, or 0.
func (s *Services) GetVolume(ctx context.Context, ticker string, date time.Time) (float64, error) {
	if err := s.ensurePrices(ctx, ticker); err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("Price history unavailable")
	}
	return s.cache.VolumeAt(ctx, ticker, date)
}

func (s *Services) ensurePrices(ctx context.Context, ticker string) error {
	if s.prices == nil {
		return nil
	}
	defer s.locks.lock("prices:" + strings.ToLower(ticker))()

	ok, err := s.cache.HasPrices(ctx, ticker)
	if err != nil || ok {
		return err
	}
	return s.fetchTickerPrices(ctx, ticker)
}

// FetchTickerPrices replaces the cached price and volume series of ticker.
func (s *Services) FetchTickerPrices(ctx context.Context, ticker string) error {
	if s.prices == nil {
		return fmt.Errorf("%w: prices", ErrNoFetcher)
	}
	defer s.locks.lock("prices:" + strings.ToLower(ticker))()
	return s.fetchTickerPrices(ctx, ticker)
}

func (s *Services) fetchTickerPrices(ctx context.Context, ticker string) error {
	bars, err := s.prices.History(ctx, ticker)
	if err != nil {
		return err
	}
	closes := make([]cache.Sample, len(bars))
	volumes := make([]cache.Sample, len(bars))
	for i, b := range bars {
		closes[i] = cache.Sample{Time: b.Time, Value: b.Close}
		volumes[i] = cache.Sample{Time: b.Time, Value: b.Volume}
	}
	if err := s.cache.StoreSeries(ctx, ticker, cache.Price, closes); err != nil {
		return err
	}
	if err := s.cache.StoreSeries(ctx, ticker, cache.Volume, volumes); err != nil {
		return err
	}
	log.Debug().Str("ticker", ticker).Int("days", len(bars)).Msg("Stored price history")
	return nil
}
