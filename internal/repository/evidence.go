package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// EvidenceRepository handles evidence item persistence.
type EvidenceRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewEvidenceRepository creates a new evidence repository.
func NewEvidenceRepository(db *pgxpool.Pool, logger *logrus.Logger) *EvidenceRepository {
	return &EvidenceRepository{
		db:  db,
		log: logger,
	}
}

// SaveEvidence inserts or replaces an evidence item.
func (r *EvidenceRepository) SaveEvidence(ctx context.Context, item *domain.EvidenceItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO evidence_items (
			id, curation_id, category, type, data,
			computed_score, validation_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			type = EXCLUDED.type,
			data = EXCLUDED.data,
			computed_score = EXCLUDED.computed_score,
			validation_status = EXCLUDED.validation_status,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		item.ID,
		item.CurationID,
		item.Category,
		item.Type,
		[]byte(item.Data),
		item.ComputedScore,
		item.ValidationStatus,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"evidence_id": item.ID,
			"curation_id": item.CurationID,
			"error":       err,
		}).Error("Failed to save evidence item")
		return fmt.Errorf("saving evidence item: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"evidence_id": item.ID,
		"curation_id": item.CurationID,
		"category":    string(item.Category),
	}).Debug("Evidence item saved")

	return nil
}

// GetEvidence retrieves an evidence item by ID.
func (r *EvidenceRepository) GetEvidence(ctx context.Context, id string) (*domain.EvidenceItem, error) {
	query := `
		SELECT id, curation_id, category, type, data,
			   computed_score, validation_status, created_at, updated_at
		FROM evidence_items
		WHERE id = $1`

	item, err := scanEvidence(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("evidence item %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting evidence item: %w", err)
	}
	return item, nil
}

// ListEvidence retrieves all evidence items of a curation ordered by ID,
// matching the deterministic ordering the scoring engine relies on.
func (r *EvidenceRepository) ListEvidence(ctx context.Context, curationID string) ([]domain.EvidenceItem, error) {
	query := `
		SELECT id, curation_id, category, type, data,
			   computed_score, validation_status, created_at, updated_at
		FROM evidence_items
		WHERE curation_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, curationID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"curation_id": curationID,
			"error":       err,
		}).Error("Failed to list evidence items")
		return nil, fmt.Errorf("listing evidence items: %w", err)
	}
	defer rows.Close()

	var items []domain.EvidenceItem
	for rows.Next() {
		item, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning evidence row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evidence rows: %w", err)
	}
	return items, nil
}

// DeleteEvidence removes an evidence item.
func (r *EvidenceRepository) DeleteEvidence(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM evidence_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting evidence item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("evidence item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanEvidence(row rowScanner) (*domain.EvidenceItem, error) {
	var item domain.EvidenceItem
	var data []byte

	err := row.Scan(
		&item.ID,
		&item.CurationID,
		&item.Category,
		&item.Type,
		&data,
		&item.ComputedScore,
		&item.ValidationStatus,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Data = data
	return &item, nil
}
