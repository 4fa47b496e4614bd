package log

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/edgarscore/internal/scoring"
)

// Progress reports batch progress with rate and ETA. It implements
// scoring.Observer and is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	name     string
	total    int
	done     int
	failed   int
	start    time.Time
	lastLog  time.Time
	interval time.Duration
	now      func() time.Time
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Done   int
	Failed int
	Total  int
	Rate   float64 // items per second
	ETA    time.Duration
}

// NewProgress creates a reporter that logs at most once per interval.
// A zero interval logs every item.
func NewProgress(name string, total int, interval time.Duration) *Progress {
	p := &Progress{name: name, total: total, interval: interval, now: time.Now}
	p.start = p.now()
	p.lastLog = p.start
	return p
}

// SetTotal updates the expected item count once it is known.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// TickerDone implements scoring.Observer.
func (p *Progress) TickerDone(ticker string, stage scoring.Stage, err error, elapsed time.Duration) {
	p.mu.Lock()
	p.done++
	if err != nil {
		p.failed++
	}
	now := p.now()
	due := now.Sub(p.lastLog) >= p.interval || (p.total > 0 && p.done == p.total)
	if due {
		p.lastLog = now
	}
	snap := p.snapshot(now)
	p.mu.Unlock()

	if due {
		log.Info().
			Str("run", p.name).
			Int("done", snap.Done).
			Int("total", snap.Total).
			Int("failed", snap.Failed).
			Float64("rate_per_sec", snap.Rate).
			Dur("eta", snap.ETA).
			Str("last", ticker).
			Msg("progress")
	}
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(p.now())
}

func (p *Progress) snapshot(now time.Time) Snapshot {
	s := Snapshot{Done: p.done, Failed: p.failed, Total: p.total}
	if secs := now.Sub(p.start).Seconds(); secs > 0 {
		s.Rate = float64(p.done) / secs
	}
	if s.Rate > 0 && p.total > p.done {
		s.ETA = time.Duration(float64(p.total-p.done) / s.Rate * float64(time.Second)).Round(time.Second)
	}
	return s
}

// Finish logs the run summary.
func (p *Progress) Finish() {
	snap := p.Snapshot()
	log.Info().
		Str("run", p.name).
		Int("done", snap.Done).
		Int("failed", snap.Failed).
		Dur("duration", p.now().Sub(p.start).Round(time.Millisecond)).
		Msg("completed")
}
