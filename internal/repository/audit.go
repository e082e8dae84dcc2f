package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// AuditRepository handles the append-only audit trail. Entries are never
// updated or deleted; per-curation ordering is carried by the sequence
// column.
type AuditRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *pgxpool.Pool, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: logger,
	}
}

// Append inserts one audit entry, assigning the next per-curation sequence
// number.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_entries (
			id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		)
		SELECT $1, $2, COALESCE(MAX(sequence), 0) + 1, $3, $4, $5, $6, $7
		FROM audit_entries WHERE curation_id = $2
		RETURNING sequence`,
		entry.ID, entry.CurationID, entry.FromState, entry.ToState,
		entry.ActorID, entry.Reason, entry.CreatedAt,
	).Scan(&entry.Sequence)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"curation_id": entry.CurationID,
			"error":       err,
		}).Error("Failed to append audit entry")
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ListByCuration retrieves a curation's full audit trail in sequence
// order.
func (r *AuditRepository) ListByCuration(ctx context.Context, curationID string) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		FROM audit_entries
		WHERE curation_id = $1
		ORDER BY sequence`

	rows, err := r.db.Query(ctx, query, curationID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}

// ListByTimeRange retrieves entries across curations within [from, to),
// oldest first, capped at limit when positive.
func (r *AuditRepository) ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		FROM audit_entries
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at`
	args := []any{from, to}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries by time range: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row rowScanner) (*domain.AuditEntry, error) {
	var entry domain.AuditEntry
	var reason *string

	err := row.Scan(
		&entry.ID,
		&entry.CurationID,
		&entry.Sequence,
		&entry.FromState,
		&entry.ToState,
		&entry.ActorID,
		&reason,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		entry.Reason = *reason
	}
	return &entry, nil
}
