package handlers

import (
	"time"

	"github.com/sawpanic/edgarscore/internal/report"
	"github.com/sawpanic/edgarscore/internal/scoring"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports dependency checks.
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" or "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status   string `json:"status"` // "pass" or "fail"
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

type PriceResponse struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
}

type VolumeResponse struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Volume float64 `json:"volume"`
}

type FiltersResponse struct {
	Fields []string `json:"fields"`
}

// ScoreRequest is the body of POST /api/score. Dates are "2006-01-02" or a
// bare year; an empty ticker list scores the whole universe.
type ScoreRequest struct {
	Tickers   []string         `json:"tickers,omitempty"`
	Filters   []scoring.Filter `json:"filters"`
	StartDate string           `json:"start_date,omitempty"`
	EndDate   string           `json:"end_date,omitempty"`
	Sort      string           `json:"sort,omitempty"`
}

// ScoreResponse lists the surviving tickers next to their rows.
type ScoreResponse struct {
	report.ScoreDocument
	Matches []string `json:"matches"`
}
