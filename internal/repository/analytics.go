package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// AnalyticsStore serves read-only reporting queries over the curation
// tables. It runs on database/sql so reporting can point at a replica
// without touching the pgx pool the write path uses.
type AnalyticsStore struct {
	db *sql.DB
}

// NewAnalyticsStore wraps an existing connection.
func NewAnalyticsStore(db *sql.DB) (*AnalyticsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &AnalyticsStore{db: db}, nil
}

// NewAnalyticsStoreFromURL opens a pooled connection to the given URL.
func NewAnalyticsStoreFromURL(databaseURL string) (*AnalyticsStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &AnalyticsStore{db: db}, nil
}

// StatusCount is one row of the status distribution.
type StatusCount struct {
	Status domain.CurationStatus `json:"status"`
	Count  int64                 `json:"count"`
}

// ClassificationCount is one row of the classification distribution over
// approved curations.
type ClassificationCount struct {
	Classification domain.Classification `json:"classification"`
	Count          int64                 `json:"count"`
}

// ThroughputRow is one day of transition throughput.
type ThroughputRow struct {
	Day     time.Time             `json:"day"`
	ToState domain.CurationStatus `json:"to_state"`
	Count   int64                 `json:"count"`
}

// StatusDistribution counts non-deleted curations per lifecycle state
// within a scope. An empty scope counts across all scopes.
func (s *AnalyticsStore) StatusDistribution(ctx context.Context, scopeID string) ([]StatusCount, error) {
	query := `
		SELECT status, COUNT(*)
		FROM curations
		WHERE deleted_at IS NULL AND ($1 = '' OR scope_id = $1)
		GROUP BY status
		ORDER BY status`

	rows, err := s.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying status distribution: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var row StatusCount
		if err := rows.Scan(&row.Status, &row.Count); err != nil {
			return nil, fmt.Errorf("scanning status distribution row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ClassificationDistribution counts approved curations per cached
// classification within a scope.
func (s *AnalyticsStore) ClassificationDistribution(ctx context.Context, scopeID string) ([]ClassificationCount, error) {
	query := `
		SELECT cached_result->>'classification', COUNT(*)
		FROM curations
		WHERE deleted_at IS NULL
		  AND status = $1
		  AND cached_result IS NOT NULL
		  AND ($2 = '' OR scope_id = $2)
		GROUP BY cached_result->>'classification'
		ORDER BY 1`

	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusApproved), scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying classification distribution: %w", err)
	}
	defer rows.Close()

	var out []ClassificationCount
	for rows.Next() {
		var row ClassificationCount
		if err := rows.Scan(&row.Classification, &row.Count); err != nil {
			return nil, fmt.Errorf("scanning classification row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TransitionThroughput counts applied transitions per day and target state
// within [from, to).
func (s *AnalyticsStore) TransitionThroughput(ctx context.Context, from, to time.Time) ([]ThroughputRow, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("transition throughput: %w", domain.ErrInvalidTimeRange)
	}

	query := `
		SELECT date_trunc('day', created_at) AS day, to_state, COUNT(*)
		FROM audit_entries
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day, to_state
		ORDER BY day, to_state`

	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying transition throughput: %w", err)
	}
	defer rows.Close()

	var out []ThroughputRow
	for rows.Next() {
		var row ThroughputRow
		if err := rows.Scan(&row.Day, &row.ToState, &row.Count); err != nil {
			return nil, fmt.Errorf("scanning throughput row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MeanApprovalLatency returns the mean time from curation creation to the
// first approval within a scope, or zero when no curation was approved.
func (s *AnalyticsStore) MeanApprovalLatency(ctx context.Context, scopeID string) (time.Duration, error) {
	query := `
		SELECT COALESCE(EXTRACT(EPOCH FROM AVG(a.created_at - c.created_at)), 0)
		FROM audit_entries a
		JOIN curations c ON c.id = a.curation_id
		WHERE a.to_state = $1 AND ($2 = '' OR c.scope_id = $2)`

	var seconds float64
	err := s.db.QueryRowContext(ctx, query, string(domain.StatusApproved), scopeID).Scan(&seconds)
	if err != nil {
		return 0, fmt.Errorf("querying approval latency: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Close releases the underlying connection.
func (s *AnalyticsStore) Close() error {
	return s.db.Close()
}
