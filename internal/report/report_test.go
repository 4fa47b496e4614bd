package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/edgarscore/internal/backtest"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

func TestMagnitude(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{1.3, "1.30"},
		{999.994, "999.99"},
		{1000, "1K"},
		{45_600, "46K"},
		{999_999, "1000K"},
		{1e6, "1M"},
		{2.5e8, "250M"},
		{1e9, "1B"},
		{2.1e12, "2100B"},
		{-5e6, "-5000000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Magnitude(tt.in), "input %v", tt.in)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "50.00%", Percent(0.5))
	assert.Equal(t, "-12.34%", Percent(-0.1234))
	assert.Equal(t, "30.00%", GrowthPercent(1.3))
	assert.Equal(t, "n/a", GrowthPercent(0))
}

func TestScores(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Scores(&buf, []scoring.ScoreEntry{
		{Ticker: "AAA", GrossProfitGrowth: 1.3, RnDRatio: 0.5, NetIncome: 10, MktCap: 2e9},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "grossProfitGrowth")
	assert.Contains(t, lines[0], "mktCap")
	assert.Contains(t, lines[1], "AAA")
	assert.Contains(t, lines[1], "1.30")
	assert.Contains(t, lines[1], "2B")

	buf.Reset()
	require.NoError(t, Scores(&buf, nil))
	assert.Equal(t, NoMatches+"\n", buf.String())
}

func testResult() backtest.Result {
	return backtest.Result{
		Window: backtest.Window{
			Buy:  time.Date(2016, 2, 17, 0, 0, 0, 0, time.UTC),
			Sell: time.Date(2019, 4, 26, 0, 0, 0, 0, time.UTC),
		},
		Rows: []backtest.Row{
			{Entry: scoring.ScoreEntry{Ticker: "AAA", MktCap: 3e9}, Gain: 0.25},
			{Entry: scoring.ScoreEntry{Ticker: "BBB"}, Err: errors.New("no price available")},
		},
		Average: 0.125,
		Priced:  1,
		Index: []backtest.Row{
			{Entry: scoring.ScoreEntry{Ticker: "qqq"}, Gain: 0.6},
			{Entry: scoring.ScoreEntry{Ticker: "spy"}, Gain: 0.4},
		},
		IndexAverage: 0.5,
		IndexPriced:  2,
	}
}

func TestBacktest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Backtest(&buf, testResult()))
	out := buf.String()

	assert.Contains(t, out, "buy 2016-02-17  sell 2019-04-26")
	assert.Contains(t, out, "25.00%")
	assert.Contains(t, out, "60.00%")
	assert.Contains(t, out, "12.50%")
	assert.Contains(t, out, `error handling "BBB"`)
	assert.Contains(t, out, "average over 2 tickers, 1 without prices counted as 0")
}

func TestBacktest_NoMatches(t *testing.T) {
	var buf bytes.Buffer
	res := backtest.Result{Window: testResult().Window}
	require.NoError(t, Backtest(&buf, res))
	assert.Contains(t, buf.String(), NoMatches)
}

func TestJSONDocuments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, NewScoreDocument(nil)))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, true, doc["no_matches"])
	assert.Equal(t, []any{}, doc["scores"])

	buf.Reset()
	require.NoError(t, JSON(&buf, NewBacktestDocument(testResult())))
	var bt BacktestDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &bt))
	assert.Equal(t, "2016-02-17", bt.Buy)
	require.Len(t, bt.Rows, 2)
	require.NotNil(t, bt.Rows[0].Gain)
	assert.Equal(t, 0.25, *bt.Rows[0].Gain)
	assert.Nil(t, bt.Rows[1].Gain)
	assert.Equal(t, "no price available", bt.Rows[1].Error)
	assert.Equal(t, 3e9, bt.Rows[0].MktCap)
}
