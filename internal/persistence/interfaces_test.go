package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexEntry_Validate(t *testing.T) {
	tests := []struct {
		name  string
		entry IndexEntry
		valid bool
	}{
		{"valid", IndexEntry{CIK: "320193", Year: 2020, URL: "edgar/data/320193/a.txt"}, true},
		{"missing_cik", IndexEntry{Year: 2020, URL: "a.txt"}, false},
		{"pre_edgar_year", IndexEntry{CIK: "1", Year: 1980, URL: "a.txt"}, false},
		{"missing_url", IndexEntry{CIK: "1", Year: 2020}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalizeCIK(t *testing.T) {
	assert.Equal(t, "320193", NormalizeCIK("0000320193"))
	assert.Equal(t, "320193", NormalizeCIK(" 320193 "))
	assert.Equal(t, "0", NormalizeCIK("0000"))
}

func TestMemoryIndexRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryIndexRepo()

	stored, err := repo.IsStored(ctx, 2020)
	require.NoError(t, err)
	assert.False(t, stored)

	entries := []IndexEntry{
		{CIK: "789019", Company: "MICROSOFT CORP", FormType: FormAnnualReport, DateFiled: time.Date(2020, 7, 31, 0, 0, 0, 0, time.UTC), URL: "edgar/data/789019/b.txt"},
		{CIK: "0000320193", Company: "Apple Inc.", FormType: FormAnnualReport, DateFiled: time.Date(2020, 10, 30, 0, 0, 0, 0, time.UTC), URL: "edgar/data/320193/a.txt"},
		{CIK: "320193", Company: "Apple Inc.", FormType: FormAnnualReport, DateFiled: time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC), URL: "edgar/data/320193/amended.txt"},
	}
	require.NoError(t, repo.Store(ctx, 2020, entries))
	// Storing the same rows again is a no-op
	require.NoError(t, repo.Store(ctx, 2020, entries))

	stored, err = repo.IsStored(ctx, 2020)
	require.NoError(t, err)
	assert.True(t, stored)

	list, err := repo.ListByYear(ctx, 2020)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "320193", list[0].CIK)
	assert.Equal(t, 2020, list[0].Year)

	e, err := repo.GetByCIK(ctx, "0000320193", 2020)
	require.NoError(t, err)
	assert.Equal(t, "edgar/data/320193/amended.txt", e.URL, "latest filing wins")

	_, err = repo.GetByCIK(ctx, "320193", 2019)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Store(ctx, 2021, []IndexEntry{{CIK: "1"}})
	assert.Error(t, err)

	h := repo.Health(ctx)
	assert.True(t, h.Healthy)
	assert.Equal(t, 3, h.ConnectionPool["rows"])
}
