package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/edgarscore/internal/persistence"
)

// Schema creates the filing index table.
const Schema = `
CREATE TABLE IF NOT EXISTS sec_idx (
	cik         TEXT    NOT NULL,
	year        INTEGER NOT NULL,
	company     TEXT    NOT NULL DEFAULT '',
	report_type TEXT    NOT NULL,
	date_filed  DATE    NOT NULL,
	url         TEXT    NOT NULL,
	UNIQUE (cik, year, url)
);
CREATE INDEX IF NOT EXISTS sec_idx_year_cik ON sec_idx (year, cik);`

// indexRepo implements persistence.IndexRepo over the sec_idx table.
type indexRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewIndexRepo creates a PostgreSQL filing index repository.
func NewIndexRepo(db *sqlx.DB, timeout time.Duration) persistence.IndexRepo {
	return &indexRepo{db: db, timeout: timeout}
}

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create sec_idx schema: %w", err)
	}
	return nil
}

// Store inserts entries in one transaction, skipping rows already present.
func (r *indexRepo) Store(ctx context.Context, year int, entries []persistence.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(entries)/1000+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sec_idx (cik, year, company, report_type, date_filed, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cik, year, url) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		e.Year = year
		if err := e.Validate(); err != nil {
			return err
		}
		_, err := stmt.ExecContext(ctx,
			persistence.NormalizeCIK(e.CIK), year, e.Company, e.FormType, e.DateFiled, e.URL)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				continue
			}
			return fmt.Errorf("failed to insert index entry %s: %w", e.CIK, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index for %d: %w", year, err)
	}
	return nil
}

func (r *indexRepo) IsStored(ctx context.Context, year int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRowxContext(ctx, `SELECT EXISTS (SELECT 1 FROM sec_idx WHERE year = $1)`, year).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index for %d: %w", year, err)
	}
	return exists, nil
}

func (r *indexRepo) GetByCIK(ctx context.Context, cik string, year int) (*persistence.IndexEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var e persistence.IndexEntry
	err := r.db.GetContext(ctx, &e, `
		SELECT cik, year, company, report_type, date_filed, url
		FROM sec_idx
		WHERE cik = $1 AND year = $2
		ORDER BY date_filed DESC
		LIMIT 1`, persistence.NormalizeCIK(cik), year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index entry %s/%d: %w", cik, year, err)
	}
	return &e, nil
}

func (r *indexRepo) ListByYear(ctx context.Context, year int) ([]persistence.IndexEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var entries []persistence.IndexEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT cik, year, company, report_type, date_filed, url
		FROM sec_idx
		WHERE year = $1
		ORDER BY cik`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list index for %d: %w", year, err)
	}
	return entries, nil
}
