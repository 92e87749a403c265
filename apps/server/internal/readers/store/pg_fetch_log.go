package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tilsley/scmreader/pkg/reading"
)

// Compile-time check: *PGFetchLog implements reading.FetchRecorder.
var _ reading.FetchRecorder = (*PGFetchLog)(nil)

// PGFetchLog persists reader calls to the fetch_events table.
type PGFetchLog struct {
	pool *pgxpool.Pool
}

// NewPGFetchLog creates a new PGFetchLog with the given connection pool.
func NewPGFetchLog(pool *pgxpool.Pool) *PGFetchLog {
	return &PGFetchLog{pool: pool}
}

// RecordFetch inserts one event row.
func (s *PGFetchLog) RecordFetch(ctx context.Context, e reading.FetchEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fetch_events (id, operation, url, host, etag, outcome, duration_ms, file_count, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Operation, e.URL, hostOf(e.URL), nilIfEmpty(e.ETag),
		e.Outcome, e.DurationMs, e.FileCount, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch_event: %w", err)
	}
	return nil
}

// FetchOverview aggregates the fetch log.
type FetchOverview struct {
	TotalFetches  int64   `json:"totalFetches"`
	NotModified   int64   `json:"notModified"`
	Failed        int64   `json:"failed"`
	FilesRead     int64   `json:"filesRead"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	// HitRate is the share of calls answered as not modified.
	HitRate float64      `json:"hitRate"`
	Hosts   []HostCounts `json:"hosts"`
}

// HostCounts is the per-host slice of FetchOverview.
type HostCounts struct {
	Host    string `json:"host"`
	Fetches int64  `json:"fetches"`
	Failed  int64  `json:"failed"`
}

// Overview returns aggregate totals over every recorded fetch.
func (s *PGFetchLog) Overview(ctx context.Context) (*FetchOverview, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'not_modified'),
			COUNT(*) FILTER (WHERE outcome NOT IN ('ok', 'not_modified')),
			COALESCE(SUM(file_count), 0),
			COALESCE(AVG(duration_ms), 0),
			CASE
				WHEN COUNT(*) = 0 THEN 0
				ELSE COUNT(*) FILTER (WHERE outcome = 'not_modified')::float / COUNT(*)
			END
		FROM fetch_events
	`)

	var o FetchOverview
	if err := row.Scan(&o.TotalFetches, &o.NotModified, &o.Failed, &o.FilesRead, &o.AvgDurationMs, &o.HitRate); err != nil {
		return nil, fmt.Errorf("overview query: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT host,
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome NOT IN ('ok', 'not_modified'))
		FROM fetch_events
		GROUP BY host
		ORDER BY host
	`)
	if err != nil {
		return nil, fmt.Errorf("host overview query: %w", err)
	}
	defer rows.Close()

	o.Hosts = []HostCounts{}
	for rows.Next() {
		var h HostCounts
		if err := rows.Scan(&h.Host, &h.Fetches, &h.Failed); err != nil {
			return nil, fmt.Errorf("scan host row: %w", err)
		}
		o.Hosts = append(o.Hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("host rows: %w", err)
	}
	return &o, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
