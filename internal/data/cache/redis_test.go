package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/edgarscore/internal/financials"
)

type countingRecorder struct {
	hits, misses int
}

func (r *countingRecorder) CacheLookup(_ string, hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func TestStore_Financials(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db, "")
	rec := &countingRecorder{}
	store.SetRecorder(rec)
	ctx := context.Background()

	t.Run("stores facts as sorted string fields", func(t *testing.T) {
		mock.ExpectHSet("aapl:2020", "GrossProfit", "104956000000", "NetIncome", "57411000000.5").SetVal(2)

		err := store.StoreFinancials(ctx, "AAPL", 2020, map[string]float64{
			"NetIncome":   57411000000.5,
			"GrossProfit": 104956000000,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reads facts back as a raw record", func(t *testing.T) {
		mock.ExpectHGetAll("aapl:2020").SetVal(map[string]string{"GrossProfit": "104956000000"})

		raw, err := store.GetFinancials(ctx, "aapl", financials.Year, 2020)
		require.NoError(t, err)
		assert.Equal(t, "104956000000", raw["GrossProfit"])

		gp := financials.NewNormalizer().Income(raw).GrossProfit
		require.NotNil(t, gp)
		assert.Equal(t, 104956000000.0, *gp)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing year is ErrNotFound", func(t *testing.T) {
		mock.ExpectHGetAll("aapl:2001").SetVal(map[string]string{})

		_, err := store.GetFinancials(ctx, "aapl", financials.Year, 2001)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("quarterly data is unsupported", func(t *testing.T) {
		_, err := store.GetFinancials(ctx, "aapl", financials.Quarter, 2020)
		assert.ErrorIs(t, err, ErrUnsupportedPeriod)
	})

	t.Run("redis error is wrapped", func(t *testing.T) {
		mock.ExpectHGetAll("aapl:2019").SetErr(redis.TxFailedErr)

		_, err := store.GetFinancials(ctx, "aapl", financials.Year, 2019)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exists check", func(t *testing.T) {
		mock.ExpectExists("aapl:2020").SetVal(1)

		ok, err := store.HasFinancials(ctx, "AAPL", 2020)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestStore_TickerInfo(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db, "edgar:")
	ctx := context.Background()

	mock.ExpectHSet("edgar:msft:info", "company_name", "MICROSOFT CORP", "txt_url:2020", "edgar/data/789019/0001564590-20-034944.txt").SetVal(2)
	err := store.StoreTickerInfo(ctx, "MSFT", TickerInfo{
		CompanyName: "MICROSOFT CORP",
		URLs:        map[int]string{2020: "edgar/data/789019/0001564590-20-034944.txt"},
	})
	require.NoError(t, err)

	mock.ExpectHGet("edgar:msft:info", "txt_url:2020").SetVal("edgar/data/789019/0001564590-20-034944.txt")
	url, err := store.TickerURL(ctx, "msft", 2020)
	require.NoError(t, err)
	assert.Equal(t, "edgar/data/789019/0001564590-20-034944.txt", url)

	mock.ExpectHGet("edgar:msft:info", "txt_url:2010").RedisNil()
	_, err = store.TickerURL(ctx, "msft", 2010)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectHGet("edgar:msft:info", "cik").SetVal("789019")
	cik, err := store.TickerCIK(ctx, "msft")
	require.NoError(t, err)
	assert.Equal(t, "789019", cik)

	mock.ExpectHGetAll("edgar:msft:info").SetVal(map[string]string{
		"cik":          "789019",
		"company_name": "MICROSOFT CORP",
		"txt_url:2020": "a.txt",
		"txt_url:x":    "ignored",
	})
	info, err := store.GetTickerInfo(ctx, "msft")
	require.NoError(t, err)
	assert.Equal(t, "789019", info.CIK)
	assert.Equal(t, map[int]string{2020: "a.txt"}, info.URLs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CIKMapping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db, "")
	ctx := context.Background()

	mock.ExpectHSet("cik2ticker", "320193", "aapl", "789019", "msft").SetVal(2)
	mock.ExpectSAdd("ticker_set", "aapl", "msft").SetVal(2)
	mock.ExpectHSet("aapl:info", "cik", "320193").SetVal(1)
	mock.ExpectHSet("msft:info", "cik", "789019").SetVal(1)

	err := store.StoreCIKMapping(ctx, map[string]string{"789019": "MSFT", "320193": "aapl"})
	require.NoError(t, err)

	mock.ExpectHGet("cik2ticker", "320193").SetVal("aapl")
	ticker, err := store.TickerByCIK(ctx, "320193")
	require.NoError(t, err)
	assert.Equal(t, "aapl", ticker)

	mock.ExpectSIsMember("ticker_set", "aapl").SetVal(true)
	ok, err := store.IsTickerMapped(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExists("ticker_set").SetVal(1)
	ok, err = store.HasTickerList(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSMembers("ticker_set").SetVal([]string{"msft", "aapl"})
	tickers, err := store.TickerList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aapl", "msft"}, tickers)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Series(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db, "")
	ctx := context.Background()

	day1 := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	mock.ExpectDel("aapl:price").SetVal(1)
	mock.ExpectZAdd("aapl:price",
		&redis.Z{Score: float64(day1.Unix()), Member: "1609718400:129.41"},
		&redis.Z{Score: float64(day2.Unix()), Member: "1609804800:131.01"},
	).SetVal(2)

	err := store.StoreSeries(ctx, "AAPL", Price, []Sample{{Time: day1, Value: 129.41}, {Time: day2, Value: 131.01}})
	require.NoError(t, err)

	query := day2.AddDate(0, 0, 3)
	mock.ExpectZRevRangeByScore("aapl:price", &redis.ZRangeBy{
		Min:   "1609459200",
		Max:   "1610064000",
		Count: 1,
	}).SetVal([]string{"1609804800:131.01"})

	price, err := store.PriceAt(ctx, "aapl", query)
	require.NoError(t, err)
	assert.Equal(t, 131.01, price)

	// Nothing inside the lookback window reads as 0
	later := query.AddDate(0, 1, 0)
	mock.ExpectZRevRangeByScore("aapl:volume", &redis.ZRangeBy{
		Min:   "1612137600",
		Max:   "1612742400",
		Count: 1,
	}).SetVal([]string{})

	vol, err := store.VolumeAt(ctx, "aapl", later)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)

	mock.ExpectZRangeByScore("aapl:price", &redis.ZRangeBy{Min: "1609718400", Max: "1609804800"}).
		SetVal([]string{"1609718400:129.41", "1609804800:131.01"})
	samples, err := store.Prices(ctx, "aapl", day1, day2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, day1, samples[0].Time)
	assert.Equal(t, 131.01, samples[1].Value)

	mock.ExpectExists("aapl:price").SetVal(0)
	ok, err := store.HasPrices(ctx, "aapl")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseMember(t *testing.T) {
	sm, err := parseMember("1609718400:129.41")
	require.NoError(t, err)
	assert.Equal(t, 129.41, sm.Value)

	for _, bad := range []string{"", "1609718400", "x:1", "1:y"} {
		_, err := parseMember(bad)
		assert.Error(t, err, bad)
	}
}
