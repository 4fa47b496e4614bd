package data

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/edgarscore/internal/data/cache"
	"github.com/sawpanic/edgarscore/internal/financials"
	"github.com/sawpanic/edgarscore/internal/persistence"
	"github.com/sawpanic/edgarscore/internal/providers/edgar"
	"github.com/sawpanic/edgarscore/internal/providers/prices"
)

// memCache is an in-process Cache with the Redis store's semantics.
type memCache struct {
	mu      sync.Mutex
	years   map[string]map[string]float64
	info    map[string]cache.TickerInfo
	tickers map[string]bool
	series  map[string][]cache.Sample
}

func newMemCache() *memCache {
	return &memCache{
		years:   map[string]map[string]float64{},
		info:    map[string]cache.TickerInfo{},
		tickers: map[string]bool{},
		series:  map[string][]cache.Sample{},
	}
}

func yk(ticker string, year int) string {
	return strings.ToLower(ticker) + ":" + strconv.Itoa(year)
}

func (m *memCache) HasFinancials(_ context.Context, ticker string, year int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.years[yk(ticker, year)]
	return ok, nil
}

func (m *memCache) StoreFinancials(_ context.Context, ticker string, year int, facts map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years[yk(ticker, year)] = facts
	return nil
}

func (m *memCache) GetFinancials(_ context.Context, ticker string, period financials.Period, year int) (financials.RawRecord, error) {
	if period != financials.Year {
		return nil, cache.ErrUnsupportedPeriod
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	facts, ok := m.years[yk(ticker, year)]
	if !ok {
		return nil, cache.ErrNotFound
	}
	rec := financials.RawRecord{}
	for k, v := range facts {
		rec[k] = cache.FormatValue(v)
	}
	return rec, nil
}

func (m *memCache) StoreTickerInfo(_ context.Context, ticker string, info cache.TickerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.info[ticker]
	if info.CIK != "" {
		cur.CIK = info.CIK
	}
	if info.CompanyName != "" {
		cur.CompanyName = info.CompanyName
	}
	if cur.URLs == nil {
		cur.URLs = map[int]string{}
	}
	for y, u := range info.URLs {
		cur.URLs[y] = u
	}
	m.info[ticker] = cur
	return nil
}

func (m *memCache) TickerCIK(_ context.Context, ticker string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.info[ticker]; ok && i.CIK != "" {
		return i.CIK, nil
	}
	return "", cache.ErrNotFound
}

func (m *memCache) StoreCIKMapping(ctx context.Context, cikToTicker map[string]string) error {
	for cik, t := range cikToTicker {
		m.mu.Lock()
		m.tickers[t] = true
		m.mu.Unlock()
		if err := m.StoreTickerInfo(ctx, t, cache.TickerInfo{CIK: cik}); err != nil {
			return err
		}
	}
	return nil
}

func (m *memCache) HasTickerList(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers) > 0, nil
}

func (m *memCache) TickerList(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for t := range m.tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memCache) StoreSeries(_ context.Context, ticker string, series cache.Series, samples []cache.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[ticker+":"+string(series)] = samples
	return nil
}

func (m *memCache) HasPrices(_ context.Context, ticker string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.series[ticker+":"+string(cache.Price)]
	return ok, nil
}

func (m *memCache) at(ticker string, series cache.Series, date time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var v float64
	for _, sm := range m.series[ticker+":"+string(series)] {
		if !sm.Time.After(date) && !sm.Time.Before(date.Add(-cache.Lookback)) {
			v = sm.Value
		}
	}
	return v
}

func (m *memCache) PriceAt(_ context.Context, ticker string, date time.Time) (float64, error) {
	return m.at(ticker, cache.Price, date), nil
}

func (m *memCache) VolumeAt(_ context.Context, ticker string, date time.Time) (float64, error) {
	return m.at(ticker, cache.Volume, date), nil
}

type fakeFilings struct {
	indexCalls     int32
	financialCalls int32
}

func (f *fakeFilings) FetchTickerList(context.Context) ([]edgar.TickerCIK, error) {
	return []edgar.TickerCIK{{Ticker: "aapl", CIK: "320193"}, {Ticker: "msft", CIK: "789019"}, {Ticker: "aapl.w", CIK: "320193"}}, nil
}

func (f *fakeFilings) FetchYearIndex(_ context.Context, year int) ([]persistence.IndexEntry, error) {
	atomic.AddInt32(&f.indexCalls, 1)
	return []persistence.IndexEntry{{
		CIK:       "320193",
		Company:   "Apple Inc.",
		FormType:  persistence.FormAnnualReport,
		DateFiled: time.Date(year, 10, 30, 0, 0, 0, 0, time.UTC),
		URL:       "edgar/data/320193/a.txt",
	}}, nil
}

func (f *fakeFilings) FetchFinancials(context.Context, string) (*edgar.Facts, error) {
	atomic.AddInt32(&f.financialCalls, 1)
	return &edgar.Facts{
		Values:            map[string]float64{"GrossProfit": 100, "Assets": 300, "Liabilities": 100},
		SharesOutstanding: 10,
		ReportDate:        time.Date(2020, 9, 26, 0, 0, 0, 0, time.UTC),
	}, nil
}

type fakePrices struct{ calls int32 }

func (p *fakePrices) History(_ context.Context, ticker string) ([]prices.Bar, error) {
	atomic.AddInt32(&p.calls, 1)
	if ticker == "fail" {
		return nil, errors.New("boom")
	}
	return []prices.Bar{
		{Time: time.Date(2020, 9, 24, 0, 0, 0, 0, time.UTC), Close: 50, Volume: 1000},
		{Time: time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), Close: 60, Volume: 2000},
	}, nil
}

func newTestServices() (*Services, *memCache, *fakeFilings, *fakePrices) {
	c := newMemCache()
	f := &fakeFilings{}
	p := &fakePrices{}
	s := NewServices(c, persistence.NewMemoryIndexRepo(), WithFilings(f), WithPriceHistory(p))
	return s, c, f, p
}

func TestServices_GetTickerList(t *testing.T) {
	s, _, _, _ := newTestServices()
	list, err := s.GetTickerList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"aapl", "msft"}, list, "duplicate cik keeps first ticker")
}

func TestServices_GetTickerData(t *testing.T) {
	ctx := context.Background()
	s, c, f, p := newTestServices()
	_, err := s.GetTickerList(ctx)
	require.NoError(t, err)

	data, err := s.GetTickerData(ctx, "aapl", financials.Year, 2020, 2021)
	require.NoError(t, err)
	require.Len(t, data, 2)

	rec := data["2020"]
	assert.Equal(t, "2020", rec["date"])
	assert.Equal(t, "100", rec["GrossProfit"])
	assert.Equal(t, "200", rec["TotalEquityGross"])
	assert.Equal(t, "500", rec["MarketCap"], "shares times close on the report date")
	assert.Equal(t, int32(2), f.indexCalls)
	assert.Equal(t, int32(2), f.financialCalls)
	assert.Equal(t, int32(1), p.calls)
	assert.Equal(t, "edgar/data/320193/a.txt", c.info["aapl"].URLs[2020])
	assert.Equal(t, "Apple Inc.", c.info["aapl"].CompanyName)

	_, err = s.GetTickerData(ctx, "aapl", financials.Year, 2020, 2021)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.financialCalls, "cached years are not refetched")
	assert.Equal(t, int32(2), f.indexCalls)
}

func TestServices_GetTickerData_MissingYears(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestServices()
	_, err := s.GetTickerList(ctx)
	require.NoError(t, err)

	data, err := s.GetTickerData(ctx, "msft", financials.Year, 2020, 2020)
	require.NoError(t, err)
	assert.Empty(t, data, "no filing for msft in the index")

	err = s.FetchFinancialsByYear(ctx, 2021, "msft")
	assert.ErrorIs(t, err, ErrNoFiling)

	err = s.FetchFinancialsByYear(ctx, 2020, "zzzz")
	assert.ErrorIs(t, err, ErrUnknownTicker)

	_, err = s.GetTickerData(ctx, "aapl", financials.Quarter, 2020, 2020)
	assert.ErrorIs(t, err, cache.ErrUnsupportedPeriod)

	_, err = s.GetTickerData(ctx, "aapl", financials.Year, 0, 99999)
	assert.ErrorIs(t, err, ErrYearRange)
	_, err = s.GetTickerData(ctx, "aapl", financials.Year, 2021, 2020)
	assert.ErrorIs(t, err, ErrYearRange)
}

func TestServices_MissingFilingIsRemembered(t *testing.T) {
	ctx := context.Background()
	s, c, f, _ := newTestServices()
	_, err := s.GetTickerList(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, s.FetchFinancialsByYear(ctx, 2020, "msft"), ErrNoFiling)
	assert.ErrorIs(t, s.FetchFinancialsByYear(ctx, 2020, "zzzz"), ErrUnknownTicker)
	assert.Contains(t, c.years, "msft:2020")
	assert.Contains(t, c.years, "zzzz:2020")

	calls := f.financialCalls
	indexCalls := f.indexCalls
	assert.NoError(t, s.FetchFinancialsByYear(ctx, 2020, "msft"), "marked years are not looked up again")
	assert.NoError(t, s.FetchFinancialsByYear(ctx, 2020, "zzzz"))
	assert.Equal(t, calls, f.financialCalls)
	assert.Equal(t, indexCalls, f.indexCalls)

	data, err := s.GetTickerData(ctx, "msft", financials.Year, 2020, 2020)
	require.NoError(t, err)
	assert.Empty(t, data, "the marker is not returned as a fiscal year")
}

func TestServices_IndexTickersSkipFilings(t *testing.T) {
	ctx := context.Background()
	s, _, f, p := newTestServices()

	data, err := s.GetTickerData(ctx, "SPY", financials.Year, 2020, 2020)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Zero(t, f.financialCalls)
	assert.Equal(t, int32(1), p.calls)

	price, err := s.GetPrice(ctx, "SPY", time.Date(2021, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 60.0, price)
}

func TestServices_Prices(t *testing.T) {
	ctx := context.Background()
	s, _, _, p := newTestServices()

	price, err := s.GetPrice(ctx, "aapl", time.Date(2020, 9, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)

	vol, err := s.GetVolume(ctx, "aapl", time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, vol)

	price, err = s.GetPrice(ctx, "aapl", time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, price, "nothing within a week")
	assert.Equal(t, int32(1), p.calls)

	require.NoError(t, s.FetchTickerPrices(ctx, "aapl"))
	assert.Equal(t, int32(2), p.calls)

	price, err = s.GetPrice(ctx, "fail", time.Now())
	require.NoError(t, err)
	assert.Zero(t, price)
}

func TestServices_CacheOnly(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	require.NoError(t, c.StoreFinancials(ctx, "aapl", 2020, map[string]float64{"GrossProfit": 1}))
	s := NewServices(c, persistence.NewMemoryIndexRepo())

	data, err := s.GetTickerData(ctx, "aapl", financials.Year, 2019, 2020)
	require.NoError(t, err)
	assert.Len(t, data, 1)

	_, err = s.GetTickerList(ctx)
	assert.ErrorIs(t, err, ErrNoFetcher)
	assert.ErrorIs(t, s.FetchTickerPrices(ctx, "aapl"), ErrNoFetcher)
	assert.ErrorIs(t, s.FetchFinancialsByYear(ctx, 2019, "aapl"), ErrNoFetcher)
}

func TestServices_ConcurrentIndexFetch(t *testing.T) {
	ctx := context.Background()
	s, _, f, _ := newTestServices()
	_, err := s.GetTickerList(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.EnsureIndex(ctx, 2019))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.indexCalls))
}
