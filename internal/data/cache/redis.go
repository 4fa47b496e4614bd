// Package cache stores filing facts, ticker metadata and price series in
// Redis. Tickers are lowercased in every key.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/edgarscore/internal/financials"
)

const (
	cikMapKey    = "cik2ticker"
	tickerSetKey = "ticker_set"

	infoCIK         = "cik"
	infoCompanyName = "company_name"
	infoURLPrefix   = "txt_url:"

	// Lookback bounds how far before a date a price sample may be.
	Lookback = 7 * 24 * time.Hour
)

var (
	// ErrNotFound is returned when a key or hash field is absent.
	ErrNotFound = errors.New("not found in cache")
	// ErrUnsupportedPeriod is returned for period granularities the cache does not hold.
	ErrUnsupportedPeriod = errors.New("unsupported period")
)

// Series names a cached daily time series.
type Series string

const (
	Price  Series = "price"
	Volume Series = "volume"
)

// Sample is one point of a daily series.
type Sample struct {
	Time  time.Time
	Value float64
}

// Config holds Redis connection settings.
type Config struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		PoolSize:    50,
		DialTimeout: 5 * time.Second,
	}
}

// Recorder receives cache hit and miss notifications.
type Recorder interface {
	CacheLookup(kind string, hit bool)
}

// Store is the Redis-backed cache.
type Store struct {
	client   *redis.Client
	prefix   string
	recorder Recorder
}

// New wraps an existing client. Tests pass a redismock client here.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return New(client, cfg.Prefix), nil
}

// SetRecorder installs a hit/miss recorder.
func (s *Store) SetRecorder(r Recorder) { s.recorder = r }

func (s *Store) record(kind string, hit bool) {
	if s.recorder != nil {
		s.recorder.CacheLookup(kind, hit)
	}
}

func (s *Store) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

func norm(ticker string) string { return strings.ToLower(strings.TrimSpace(ticker)) }

func (s *Store) yearKey(ticker string, year int) string {
	return s.key(norm(ticker), strconv.Itoa(year))
}

func (s *Store) infoKey(ticker string) string { return s.key(norm(ticker), "info") }

func (s *Store) seriesKey(ticker string, series Series) string {
	return s.key(norm(ticker), string(series))
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.client.Close() }

// sortedPairs flattens m into field, value, field, value... in key order.
func sortedPairs(m map[string]string) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, m[k])
	}
	return out
}

// FormatValue renders a fact the way it is written to the cache.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// StoreFinancials writes the facts of one fiscal year.
func (s *Store) StoreFinancials(ctx context.Context, ticker string, year int, facts map[string]float64) error {
	if len(facts) == 0 {
		return nil
	}
	values := make(map[string]string, len(facts))
	for k, v := range facts {
		values[k] = FormatValue(v)
	}
	if err := s.client.HSet(ctx, s.yearKey(ticker, year), sortedPairs(values)...).Err(); err != nil {
		return fmt.Errorf("redis hset financials: %w", err)
	}
	return nil
}

// GetFinancials reads one fiscal year as a raw record of string values.
func (s *Store) GetFinancials(ctx context.Context, ticker string, period financials.Period, year int) (financials.RawRecord, error) {
	if period != financials.Year {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPeriod, period)
	}
	m, err := s.client.HGetAll(ctx, s.yearKey(ticker, year)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall financials: %w", err)
	}
	if len(m) == 0 {
		s.record("financials", false)
		return nil, ErrNotFound
	}
	s.record("financials", true)

	rec := make(financials.RawRecord, len(m))
	for k, v := range m {
		rec[k] = v
	}
	return rec, nil
}

// HasFinancials reports whether a fiscal year is cached.
func (s *Store) HasFinancials(ctx context.Context, ticker string, year int) (bool, error) {
	n, err := s.client.Exists(ctx, s.yearKey(ticker, year)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// TickerInfo is the company metadata cached per ticker.
type TickerInfo struct {
	CIK         string
	CompanyName string
	URLs        map[int]string
}

func (i TickerInfo) fields() map[string]string {
	m := make(map[string]string)
	if i.CIK != "" {
		m[infoCIK] = i.CIK
	}
	if i.CompanyName != "" {
		m[infoCompanyName] = i.CompanyName
	}
	for year, url := range i.URLs {
		m[infoURLPrefix+strconv.Itoa(year)] = url
	}
	return m
}

// StoreTickerInfo merges the non-empty fields of info into the ticker's hash.
func (s *Store) StoreTickerInfo(ctx context.Context, ticker string, info TickerInfo) error {
	fields := info.fields()
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, s.infoKey(ticker), sortedPairs(fields)...).Err(); err != nil {
		return fmt.Errorf("redis hset info: %w", err)
	}
	return nil
}

// GetTickerInfo reads the ticker's metadata hash.
func (s *Store) GetTickerInfo(ctx context.Context, ticker string) (TickerInfo, error) {
	m, err := s.client.HGetAll(ctx, s.infoKey(ticker)).Result()
	if err != nil {
		return TickerInfo{}, fmt.Errorf("redis hgetall info: %w", err)
	}
	if len(m) == 0 {
		return TickerInfo{}, ErrNotFound
	}
	info := TickerInfo{CIK: m[infoCIK], CompanyName: m[infoCompanyName], URLs: map[int]string{}}
	for k, v := range m {
		if !strings.HasPrefix(k, infoURLPrefix) {
			continue
		}
		if year, err := strconv.Atoi(strings.TrimPrefix(k, infoURLPrefix)); err == nil {
			info.URLs[year] = v
		}
	}
	return info, nil
}

func (s *Store) hget(ctx context.Context, key, field string) (string, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", field, err)
	}
	return v, nil
}

// TickerURL returns the filing path recorded for year.
func (s *Store) TickerURL(ctx context.Context, ticker string, year int) (string, error) {
	return s.hget(ctx, s.infoKey(ticker), infoURLPrefix+strconv.Itoa(year))
}

// TickerCIK returns the CIK recorded for ticker.
func (s *Store) TickerCIK(ctx context.Context, ticker string) (string, error) {
	return s.hget(ctx, s.infoKey(ticker), infoCIK)
}

// StoreCIKMapping records the universe: the CIK to ticker map, the ticker
// set and each ticker's CIK.
func (s *Store) StoreCIKMapping(ctx context.Context, cikToTicker map[string]string) error {
	if len(cikToTicker) == 0 {
		return nil
	}
	mapping := make(map[string]string, len(cikToTicker))
	byTicker := make(map[string]string, len(cikToTicker))
	for cik, ticker := range cikToTicker {
		mapping[cik] = norm(ticker)
		byTicker[norm(ticker)] = cik
	}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key(cikMapKey), sortedPairs(mapping)...)
		members := make([]interface{}, len(tickers))
		for i, t := range tickers {
			members[i] = t
		}
		p.SAdd(ctx, s.key(tickerSetKey), members...)
		for _, t := range tickers {
			p.HSet(ctx, s.infoKey(t), infoCIK, byTicker[t])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store cik mapping: %w", err)
	}
	return nil
}

// TickerByCIK resolves a CIK to its ticker.
func (s *Store) TickerByCIK(ctx context.Context, cik string) (string, error) {
	return s.hget(ctx, s.key(cikMapKey), cik)
}

// IsTickerMapped reports whether ticker is part of the stored universe.
func (s *Store) IsTickerMapped(ctx context.Context, ticker string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key(tickerSetKey), norm(ticker)).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// HasTickerList reports whether the universe has been stored.
func (s *Store) HasTickerList(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tickerSetKey)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// TickerList returns the stored universe in sorted order.
func (s *Store) TickerList(ctx context.Context) ([]string, error) {
	tickers, err := s.client.SMembers(ctx, s.key(tickerSetKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(tickers)
	return tickers, nil
}

func member(sm Sample) string {
	return strconv.FormatInt(sm.Time.Unix(), 10) + ":" + FormatValue(sm.Value)
}

func parseMember(m string) (Sample, error) {
	ts, val, ok := strings.Cut(m, ":")
	if !ok {
		return Sample{}, fmt.Errorf("malformed series member %q", m)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("malformed series timestamp %q", m)
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("malformed series value %q", m)
	}
	return Sample{Time: time.Unix(unix, 0).UTC(), Value: v}, nil
}

// StoreSeries replaces the ticker's series with samples.
func (s *Store) StoreSeries(ctx context.Context, ticker string, series Series, samples []Sample) error {
	key := s.seriesKey(ticker, series)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", series, err)
	}
	if len(samples) == 0 {
		return nil
	}
	members := make([]*redis.Z, len(samples))
	for i, sm := range samples {
		members[i] = &redis.Z{Score: float64(sm.Time.Unix()), Member: member(sm)}
	}
	if err := s.client.ZAdd(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("redis zadd %s: %w", series, err)
	}
	return nil
}

// HasPrices reports whether a price series is cached for ticker.
func (s *Store) HasPrices(ctx context.Context, ticker string) (bool, error) {
	n, err := s.client.Exists(ctx, s.seriesKey(ticker, Price)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Range returns the samples of series in [from, to], oldest first.
func (s *Store) Range(ctx context.Context, ticker string, series Series, from, to time.Time) ([]Sample, error) {
	members, err := s.client.ZRangeByScore(ctx, s.seriesKey(ticker, series), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore %s: %w", series, err)
	}
	out := make([]Sample, 0, len(members))
	for _, m := range members {
		sm, err := parseMember(m)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, nil
}

// Prices is Range over the price series.
func (s *Store) Prices(ctx context.Context, ticker string, from, to time.Time) ([]Sample, error) {
	return s.Range(ctx, ticker, Price, from, to)
}

// At returns the latest sample at or before date within Lookback, or 0.
func (s *Store) At(ctx context.Context, ticker string, series Series, date time.Time) (float64, error) {
	members, err := s.client.ZRevRangeByScore(ctx, s.seriesKey(ticker, series), &redis.ZRangeBy{
		Min:   strconv.FormatInt(date.Add(-Lookback).Unix(), 10),
		Max:   strconv.FormatInt(date.Unix(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrevrangebyscore %s: %w", series, err)
	}
	if len(members) == 0 {
		s.record(string(series), false)
		return 0, nil
	}
	s.record(string(series), true)
	sm, err := parseMember(members[0])
	if err != nil {
		return 0, err
	}
	return sm.Value, nil
}

func (s *Store) PriceAt(ctx context.Context, ticker string, date time.Time) (float64, error) {
	return s.At(ctx, ticker, Price, date)
}

func (s *Store) VolumeAt(ctx context.Context, ticker string, date time.Time) (float64, error) {
	return s.At(ctx, ticker, Volume, date)
}
