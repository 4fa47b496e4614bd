package scoring

import "time"

// Stage is a step of the per-ticker pipeline.
type Stage int

const (
	StageFetch Stage = iota + 1
	StageNormalize
	StageDateFilter
	StageScore
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageNormalize:
		return "normalize"
	case StageDateFilter:
		return "date_filter"
	case StageScore:
		return "score"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// Observer is told when each ticker finishes. Stage is StageDone on success,
// otherwise the stage that failed. Calls arrive from worker goroutines.
type Observer interface {
	TickerDone(ticker string, stage Stage, err error, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ticker string, stage Stage, err error, elapsed time.Duration)

func (f ObserverFunc) TickerDone(ticker string, stage Stage, err error, elapsed time.Duration) {
	f(ticker, stage, err, elapsed)
}

// Observers fans a notification out to every member.
type Observers []Observer

func (o Observers) TickerDone(ticker string, stage Stage, err error, elapsed time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.TickerDone(ticker, stage, err, elapsed)
		}
	}
}
