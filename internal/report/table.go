package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sawpanic/edgarscore/internal/backtest"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// NoMatches is printed when a run leaves no rows.
const NoMatches = "no matches"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func writeHeader(tw *tabwriter.Writer, lead ...string) {
	for _, h := range lead {
		fmt.Fprintf(tw, "%s\t", h)
	}
	for _, f := range scoring.Fields() {
		fmt.Fprintf(tw, "%s\t", f)
	}
	fmt.Fprintln(tw)
}

func writeFields(tw *tabwriter.Writer, e scoring.ScoreEntry) {
	for _, name := range scoring.Fields() {
		fmt.Fprintf(tw, "%s\t", Magnitude(scoring.Field(name).Get(e)))
	}
	fmt.Fprintln(tw)
}

// Scores writes one row per entry with magnitude-formatted fields.
func Scores(w io.Writer, entries []scoring.ScoreEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, NoMatches)
		return err
	}

	tw := newTable(w)
	writeHeader(tw, "ticker")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t", e.Ticker)
		writeFields(tw, e)
	}
	return tw.Flush()
}

// Backtest writes the ranked rows with their gains, then index gains and the
// average over all ranked rows.
func Backtest(w io.Writer, res backtest.Result) error {
	fmt.Fprintf(w, "buy %s  sell %s\n", res.Window.Buy.Format(time.DateOnly), res.Window.Sell.Format(time.DateOnly))
	if res.NoMatches() {
		_, err := fmt.Fprintln(w, NoMatches)
		return err
	}

	tw := newTable(w)
	writeHeader(tw, "ticker", "gain")
	for _, r := range res.Rows {
		if !r.Priced() {
			fmt.Fprintf(tw, "%s\t%s\t", r.Entry.Ticker, "n/a")
		} else {
			fmt.Fprintf(tw, "%s\t%s\t", r.Entry.Ticker, Percent(r.Gain))
		}
		writeFields(tw, r.Entry)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range res.Rows {
		if !r.Priced() {
			fmt.Fprintf(w, "error handling %q: %v\n", r.Entry.Ticker, r.Err)
		}
	}

	tw = newTable(w)
	for _, r := range res.Index {
		if r.Priced() {
			fmt.Fprintf(tw, "%s\t%s\t\n", r.Entry.Ticker, Percent(r.Gain))
		} else {
			fmt.Fprintf(tw, "%s\t%s\t\n", r.Entry.Ticker, "n/a")
		}
	}
	fmt.Fprintf(tw, "avg\t%s\t\n", Percent(res.Average))
	if err := tw.Flush(); err != nil {
		return err
	}

	if res.Skipped() > 0 {
		fmt.Fprintf(w, "average over %d tickers, %d without prices counted as 0\n", len(res.Rows), res.Skipped())
	}
	return nil
}

// ScoreDocument is the JSON shape of a score run.
type ScoreDocument struct {
	Count     int                  `json:"count"`
	NoMatches bool                 `json:"no_matches"`
	Scores    []scoring.ScoreEntry `json:"scores"`
}

func NewScoreDocument(entries []scoring.ScoreEntry) ScoreDocument {
	if entries == nil {
		entries = []scoring.ScoreEntry{}
	}
	return ScoreDocument{Count: len(entries), NoMatches: len(entries) == 0, Scores: entries}
}

// GainRow is one backtest row in JSON form.
type GainRow struct {
	scoring.ScoreEntry
	Gain  *float64 `json:"gain"`
	Error string   `json:"error,omitempty"`
}

// BacktestDocument is the JSON shape of a backtest run.
type BacktestDocument struct {
	Buy          string    `json:"buy"`
	Sell         string    `json:"sell"`
	Count        int       `json:"count"`
	NoMatches    bool      `json:"no_matches"`
	Priced       int       `json:"priced"`
	AverageGain  float64   `json:"average_gain"`
	Rows         []GainRow `json:"rows"`
	Index        []GainRow `json:"index"`
	IndexAverage float64   `json:"index_average_gain"`
}

func gainRows(rows []backtest.Row) []GainRow {
	out := make([]GainRow, 0, len(rows))
	for _, r := range rows {
		g := GainRow{ScoreEntry: r.Entry}
		if r.Priced() {
			gain := r.Gain
			g.Gain = &gain
		} else {
			g.Error = r.Err.Error()
		}
		out = append(out, g)
	}
	return out
}

func NewBacktestDocument(res backtest.Result) BacktestDocument {
	return BacktestDocument{
		Buy:          res.Window.Buy.Format(time.DateOnly),
		Sell:         res.Window.Sell.Format(time.DateOnly),
		Count:        len(res.Rows),
		NoMatches:    res.NoMatches(),
		Priced:       res.Priced,
		AverageGain:  res.Average,
		Rows:         gainRows(res.Rows),
		Index:        gainRows(res.Index),
		IndexAverage: res.IndexAverage,
	}
}

// JSON writes v indented.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
