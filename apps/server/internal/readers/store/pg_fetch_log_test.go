package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgplatform "github.com/tilsley/scmreader/apps/server/internal/platform/postgres"
	"github.com/tilsley/scmreader/apps/server/internal/readers/store"
	"github.com/tilsley/scmreader/apps/server/internal/readers/store/pgmigrations"
	"github.com/tilsley/scmreader/pkg/reading"
)

// newFetchLog creates a PGFetchLog backed by a real PostgreSQL instance.
// Skips if POSTGRES_URL is not set.
func newFetchLog(t *testing.T) *store.PGFetchLog {
	t.Helper()
	pgURL := os.Getenv("POSTGRES_URL")
	if pgURL == "" {
		t.Skip("POSTGRES_URL not set, skipping Postgres integration tests")
	}
	pool, err := pgplatform.New(context.Background(), pgURL, pgmigrations.FS)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupFetchLog(t, pool)
		pool.Close()
	})
	cleanupFetchLog(t, pool)
	return store.NewPGFetchLog(pool)
}

func cleanupFetchLog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `DELETE FROM fetch_events`)
	require.NoError(t, err)
}

func event(op, rawURL, outcome string, files int) reading.FetchEvent {
	return reading.FetchEvent{
		ID:         uuid.New(),
		Operation:  op,
		URL:        rawURL,
		ETag:       "abc123def456",
		Outcome:    outcome,
		DurationMs: 40,
		FileCount:  files,
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPG_Overview_Empty(t *testing.T) {
	s := newFetchLog(t)

	o, err := s.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, o.TotalFetches)
	assert.Zero(t, o.HitRate)
	assert.Empty(t, o.Hosts)
}

func TestPG_RecordFetch_Overview(t *testing.T) {
	s := newFetchLog(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFetch(ctx, event(reading.OpTree, "https://bb.acme.io/projects/P/repos/r/browse", reading.OutcomeOK, 3)))
	require.NoError(t, s.RecordFetch(ctx, event(reading.OpTree, "https://bb.acme.io/projects/P/repos/r/browse", reading.OutcomeNotModified, 0)))
	require.NoError(t, s.RecordFetch(ctx, event(reading.OpRead, "https://github.com/acme/x/blob/main/a", reading.OutcomeNotFound, 0)))
	require.NoError(t, s.RecordFetch(ctx, event(reading.OpRead, "https://github.com/acme/x/blob/main/b", reading.OutcomeOK, 1)))

	o, err := s.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), o.TotalFetches)
	assert.Equal(t, int64(1), o.NotModified)
	assert.Equal(t, int64(1), o.Failed)
	assert.Equal(t, int64(4), o.FilesRead)
	assert.InDelta(t, 40.0, o.AvgDurationMs, 0.001)
	assert.InDelta(t, 0.25, o.HitRate, 0.001)

	require.Len(t, o.Hosts, 2)
	assert.Equal(t, store.HostCounts{Host: "bb.acme.io", Fetches: 2, Failed: 0}, o.Hosts[0])
	assert.Equal(t, store.HostCounts{Host: "github.com", Fetches: 2, Failed: 1}, o.Hosts[1])
}
