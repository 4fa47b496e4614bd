package persistence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryIndexRepo keeps the filing index in process. It backs runs where
// Postgres is disabled.
type MemoryIndexRepo struct {
	mu     sync.RWMutex
	byYear map[int][]IndexEntry
	seen   map[string]struct{}
}

func NewMemoryIndexRepo() *MemoryIndexRepo {
	return &MemoryIndexRepo{
		byYear: make(map[int][]IndexEntry),
		seen:   make(map[string]struct{}),
	}
}

func uniqueKey(e IndexEntry) string {
	return NormalizeCIK(e.CIK) + "|" + e.URL
}

func (r *MemoryIndexRepo) Store(_ context.Context, year int, entries []IndexEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		e.Year = year
		if err := e.Validate(); err != nil {
			return err
		}
		e.CIK = NormalizeCIK(e.CIK)
		k := uniqueKey(e)
		if _, dup := r.seen[k]; dup {
			continue
		}
		r.seen[k] = struct{}{}
		r.byYear[year] = append(r.byYear[year], e)
	}
	return nil
}

func (r *MemoryIndexRepo) IsStored(_ context.Context, year int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byYear[year]) > 0, nil
}

func (r *MemoryIndexRepo) GetByCIK(_ context.Context, cik string, year int) (*IndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cik = NormalizeCIK(cik)
	var best *IndexEntry
	for i := range r.byYear[year] {
		e := r.byYear[year][i]
		if e.CIK != cik {
			continue
		}
		if best == nil || e.DateFiled.After(best.DateFiled) {
			found := e
			best = &found
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (r *MemoryIndexRepo) ListByYear(_ context.Context, year int) ([]IndexEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]IndexEntry(nil), r.byYear[year]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CIK < out[j].CIK })
	return out, nil
}

func (r *MemoryIndexRepo) Health(context.Context) HealthCheck {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := 0
	for _, entries := range r.byYear {
		rows += len(entries)
	}
	return HealthCheck{
		Healthy:        true,
		ConnectionPool: map[string]int{"rows": rows},
		LastCheck:      time.Now(),
	}
}

func (r *MemoryIndexRepo) Ping(context.Context) error { return nil }
