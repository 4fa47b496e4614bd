package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/edgarscore/internal/scoring"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	var buf bytes.Buffer
	require.NoError(t, Setup("info", "json", &buf))
	return &buf
}

func TestSetup(t *testing.T) {
	buf := captureLogs(t)

	log.Debug().Msg("hidden")
	log.Info().Str("ticker", "aapl").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "aapl", entry["ticker"])
	assert.Equal(t, "info", entry["level"])

	assert.Error(t, Setup("loud", "json", buf))
	assert.Error(t, Setup("info", "xml", buf))
	assert.False(t, IsTerminal(buf))
}

func TestProgress_RateAndETA(t *testing.T) {
	buf := captureLogs(t)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProgress("score", 4, time.Hour)
	p.now = func() time.Time { return clock }
	p.start, p.lastLog = clock, clock

	clock = clock.Add(2 * time.Second)
	p.TickerDone("aaa", scoring.StageDone, nil, time.Second)
	p.TickerDone("bbb", scoring.StageFetch, errors.New("boom"), time.Second)

	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Done)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1.0, snap.Rate)
	assert.Equal(t, 2*time.Second, snap.ETA)
	assert.Empty(t, buf.String(), "interval not reached")

	p.TickerDone("ccc", scoring.StageDone, nil, time.Second)
	p.TickerDone("ddd", scoring.StageDone, nil, time.Second)
	assert.Contains(t, buf.String(), `"done":4`, "completion always logs")
	assert.Zero(t, p.Snapshot().ETA)

	p.Finish()
	assert.Contains(t, buf.String(), `"message":"completed"`)
}

func TestProgress_Concurrent(t *testing.T) {
	captureLogs(t)
	p := NewProgress("score", 100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.TickerDone("t", scoring.StageDone, nil, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, p.Snapshot().Done)
}
