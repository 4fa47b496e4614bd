package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/financials"
)

// DataAccess is the retrieval side the scorer depends on. Implementations own
// all caching.
type DataAccess interface {
	// GetTickerData returns raw records keyed by fiscal year for every year in
	// [startYear, endYear] that has data.
	GetTickerData(ctx context.Context, ticker string, period financials.Period, startYear, endYear int) (map[string]financials.RawRecord, error)
	// GetPrice returns the close at or before date, or 0 when unavailable.
	GetPrice(ctx context.Context, ticker string, date time.Time) (float64, error)
	GetTickerList(ctx context.Context) ([]string, error)
}

// DateLayout is the full-date layout of fiscal period keys.
const DateLayout = "2006-01-02"

// Config controls a scoring run.
type Config struct {
	StartDate time.Time
	EndDate   time.Time
	Period    financials.Period
	Workers   int
	SortField Field
}

// DefaultConfig scores the last five calendar years.
func DefaultConfig() Config {
	end := time.Now().UTC()
	return Config{
		StartDate: time.Date(end.Year()-5, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   end,
		Period:    financials.Year,
		Workers:   DefaultWorkers,
		SortField: DefaultSortField,
	}
}

// Validate rejects inverted ranges, unknown sort fields and negative worker
// counts.
func (c Config) Validate() error {
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date %s is before start date %s", c.EndDate.Format(DateLayout), c.StartDate.Format(DateLayout))
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.SortField != "" && !c.SortField.Valid() {
		return fmt.Errorf("unknown sort field %q", c.SortField)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.EndDate.IsZero() {
		c.EndDate = d.EndDate
	}
	if c.StartDate.IsZero() {
		c.StartDate = time.Date(c.EndDate.Year()-5, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.Period == 0 {
		c.Period = financials.Year
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.SortField == "" || !c.SortField.Valid() {
		c.SortField = DefaultSortField
	}
	return c
}

// TickerError records why a ticker was excluded from a run.
type TickerError struct {
	Ticker string
	Stage  Stage
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("ticker %s: %s: %v", e.Ticker, e.Stage, e.Err)
}

func (e *TickerError) Unwrap() error { return e.Err }

// ErrNoData means the data source returned no statement records.
var ErrNoData = errors.New("no statement data")

// ErrPanic wraps a panic recovered while processing a ticker.
var ErrPanic = errors.New("panic while scoring")

// Option customizes a Scorer.
type Option func(*Scorer)

func WithAlgorithm(a Algorithm) Option {
	return func(s *Scorer) { s.algorithm = a }
}

func WithNormalizer(n *financials.Normalizer) Option {
	return func(s *Scorer) { s.normalizer = n }
}

// WithObserver adds an observer; it may be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Scorer) { s.observers = append(s.observers, o) }
}

// Scorer runs the fetch, normalize, date filter and score steps per ticker.
// It holds no per-run state and is safe for concurrent use.
type Scorer struct {
	data       DataAccess
	cfg        Config
	algorithm  Algorithm
	normalizer *financials.Normalizer
	observers  Observers
}

// New builds a Scorer over data. Zero config fields take their defaults.
func New(data DataAccess, cfg Config, opts ...Option) *Scorer {
	s := &Scorer{
		data:       data,
		cfg:        cfg.withDefaults(),
		algorithm:  Fundamentals{},
		normalizer: financials.NewNormalizer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// ProcessTicker scores one ticker. Failures come back as *TickerError.
func (s *Scorer) ProcessTicker(ctx context.Context, ticker string) (*ScoreEntry, error) {
	start := time.Now()
	entry, stage, err := s.process(ctx, ticker)
	s.observers.TickerDone(ticker, stage, err, time.Since(start))
	if err != nil {
		return nil, &TickerError{Ticker: ticker, Stage: stage, Err: err}
	}
	return entry, nil
}

// process runs the stages for one ticker. A panic in any stage is reported
// as that stage's error so the rest of the batch keeps going.
func (s *Scorer) process(ctx context.Context, ticker string) (entry *ScoreEntry, stage Stage, err error) {
	stage = StageFetch
	defer func() {
		if r := recover(); r != nil {
			entry, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	raw, err := s.data.GetTickerData(ctx, ticker, s.cfg.Period, s.cfg.StartDate.Year(), s.cfg.EndDate.Year())
	if err != nil {
		return nil, stage, err
	}

	stage = StageNormalize
	td, err := s.normalize(ticker, raw)
	if err != nil {
		return nil, stage, err
	}

	td = s.filterByDate(td)

	stage = StageScore
	scored, err := s.algorithm.Score(ticker, td)
	if err != nil {
		return nil, stage, err
	}
	scored.Ticker = ticker
	return &scored, StageDone, nil
}

// normalize builds year-keyed ticker data from the raw year map.
func (s *Scorer) normalize(ticker string, raw map[string]financials.RawRecord) (TickerData, error) {
	td := TickerData{Ticker: ticker, Years: make([]FiscalYear, 0, len(raw))}
	for key, rec := range raw {
		if len(rec) == 0 {
			continue
		}
		if rec.Date() == "" {
			rec = withDate(rec, key)
		}
		income := s.normalizer.Income(rec)
		sheet := s.normalizer.BalanceSheet(rec)
		td.Years = append(td.Years, FiscalYear{Date: rec.Date(), Income: &income, BalanceSheet: &sheet})
		td.Profile = append(td.Profile, s.normalizer.Profile(rec))
	}
	if len(td.Years) == 0 {
		return td, ErrNoData
	}

	sortYears(td.Years)
	sort.SliceStable(td.Profile, func(i, j int) bool {
		return dateBefore(td.Profile[i].Date, td.Profile[j].Date)
	})
	return td, nil
}

// filterByDate keeps years and profiles dated within [StartDate, EndDate].
func (s *Scorer) filterByDate(td TickerData) TickerData {
	from := truncateDay(s.cfg.StartDate)
	to := truncateDay(s.cfg.EndDate)
	keep := func(date string, report bool) bool {
		d, err := ParseFiscalDate(date)
		if err != nil {
			if report {
				log.Info().Str("ticker", td.Ticker).Str("date", date).Err(err).Msg("unparseable fiscal date, record dropped")
			}
			return false
		}
		return !d.Before(from) && !d.After(to)
	}

	years := make([]FiscalYear, 0, len(td.Years))
	for _, y := range td.Years {
		if keep(y.Date, true) {
			years = append(years, y)
		}
	}
	profile := make([]financials.CompanyProfile, 0, len(td.Profile))
	for _, p := range td.Profile {
		if keep(p.Date, false) {
			profile = append(profile, p)
		}
	}
	td.Years = years
	td.Profile = profile
	return td
}

type slot struct {
	entry *ScoreEntry
	err   error
}

// ComputeScore scores every ticker, drops failures, applies filters and
// sorts ascending by the configured field. A nil ticker list scores the
// whole universe from the data source. Invalid filters fail before any fetch.
func (s *Scorer) ComputeScore(ctx context.Context, tickers []string, filters []Filter) ([]ScoreEntry, error) {
	set, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	if tickers == nil {
		tickers, err = s.data.GetTickerList(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load ticker list: %w", err)
		}
	}
	tickers = dedupe(tickers)

	slots := make([]slot, len(tickers))
	runPool(ctx, len(tickers), s.cfg.Workers,
		func(ctx context.Context, i int) {
			slots[i].entry, slots[i].err = s.ProcessTicker(ctx, tickers[i])
		},
		func(i int, err error) {
			slots[i].err = &TickerError{Ticker: tickers[i], Stage: StageFetch, Err: err}
		},
	)

	scores := make([]ScoreEntry, 0, len(tickers))
	failed := 0
	for i, r := range slots {
		if r.err != nil {
			failed++
			var te *TickerError
			stage := StageFetch
			if errors.As(r.err, &te) {
				stage = te.Stage
			}
			log.Warn().Str("ticker", tickers[i]).Str("stage", stage.String()).Err(r.err).Msg("ticker excluded from scoring")
			continue
		}
		scores = append(scores, *r.entry)
	}

	scores = set.Apply(scores)
	SortBy(scores, s.cfg.SortField)

	log.Info().
		Int("tickers", len(tickers)).
		Int("failed", failed).
		Int("matches", len(scores)).
		Str("sort", string(s.cfg.SortField)).
		Msg("scoring run complete")

	if err := ctx.Err(); err != nil {
		return scores, err
	}
	return scores, nil
}

// SortBy stable-sorts scores ascending by field.
func SortBy(scores []ScoreEntry, field Field) {
	get, ok := accessors[field]
	if !ok {
		get = accessors[DefaultSortField]
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return get(scores[i]) < get(scores[j])
	})
}

// ParseFiscalDate reads "2006-01-02" or a bare year, which stands for the
// last day of that year.
func ParseFiscalDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 {
		year, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid fiscal year %q", s)
		}
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid fiscal date %q", s)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func withDate(rec financials.RawRecord, date string) financials.RawRecord {
	out := make(financials.RawRecord, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[financials.DateKey] = date
	return out
}

func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
