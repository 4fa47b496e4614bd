package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no index row matches a lookup.
var ErrNotFound = errors.New("index entry not found")

// Annual report form types kept in the index.
const FormAnnualReport = "10-K"

// IndexEntry is one row of the quarterly EDGAR master index.
type IndexEntry struct {
	CIK       string    `json:"cik" db:"cik"`
	Year      int       `json:"year" db:"year"`
	Company   string    `json:"company" db:"company"`
	FormType  string    `json:"form_type" db:"report_type"`
	DateFiled time.Time `json:"date_filed" db:"date_filed"`
	URL       string    `json:"url" db:"url"`
}

// Validate rejects rows that cannot be resolved to a filing.
func (e IndexEntry) Validate() error {
	if strings.TrimSpace(e.CIK) == "" {
		return fmt.Errorf("index entry: cik is required")
	}
	if e.Year < 1993 {
		return fmt.Errorf("index entry %s: invalid year %d", e.CIK, e.Year)
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("index entry %s: url is required", e.CIK)
	}
	return nil
}

// IndexRepo persists the filing index by year.
type IndexRepo interface {
	// Store inserts entries for year; rows already present are left untouched.
	Store(ctx context.Context, year int, entries []IndexEntry) error

	// IsStored reports whether any entry exists for year.
	IsStored(ctx context.Context, year int) (bool, error)

	// GetByCIK returns the latest filing of cik for year.
	GetByCIK(ctx context.Context, cik string, year int) (*IndexEntry, error)

	// ListByYear returns every entry of year ordered by CIK.
	ListByYear(ctx context.Context, year int) ([]IndexEntry, error)
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}

// NormalizeCIK strips leading zeros so padded and unpadded CIKs compare equal.
func NormalizeCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if cik == "" {
		return "0"
	}
	return cik
}
