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

// PrecurationRepository handles precuration persistence.
type PrecurationRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPrecurationRepository creates a new precuration repository.
func NewPrecurationRepository(db *pgxpool.Pool, logger *logrus.Logger) *PrecurationRepository {
	return &PrecurationRepository{
		db:  db,
		log: logger,
	}
}

// CreatePrecuration inserts a new precuration.
func (r *PrecurationRepository) CreatePrecuration(ctx context.Context, precuration *domain.Precuration) error {
	query := `
		INSERT INTO precurations (
			id, scope_id, gene_symbol, disease_name, inheritance_pattern,
			status, created_by, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := r.db.Exec(ctx, query,
		precuration.ID,
		precuration.ScopeID,
		precuration.GeneSymbol,
		precuration.DiseaseName,
		precuration.InheritancePattern,
		precuration.Status,
		precuration.CreatedBy,
		precuration.Version,
		precuration.CreatedAt,
		precuration.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"precuration_id": precuration.ID,
			"gene_symbol":    precuration.GeneSymbol,
			"error":          err,
		}).Error("Failed to create precuration")
		return fmt.Errorf("creating precuration: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"precuration_id": precuration.ID,
		"gene_symbol":    precuration.GeneSymbol,
	}).Info("Precuration created")

	return nil
}

// GetPrecuration retrieves a precuration by ID.
func (r *PrecurationRepository) GetPrecuration(ctx context.Context, id string) (*domain.Precuration, error) {
	query := `
		SELECT id, scope_id, gene_symbol, disease_name, inheritance_pattern,
			   status, created_by, version, created_at, updated_at
		FROM precurations
		WHERE id = $1`

	var precuration domain.Precuration
	err := r.db.QueryRow(ctx, query, id).Scan(
		&precuration.ID,
		&precuration.ScopeID,
		&precuration.GeneSymbol,
		&precuration.DiseaseName,
		&precuration.InheritancePattern,
		&precuration.Status,
		&precuration.CreatedBy,
		&precuration.Version,
		&precuration.CreatedAt,
		&precuration.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("precuration %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting precuration: %w", err)
	}
	return &precuration, nil
}

// UpdatePrecurationStatus performs the precuration compare-and-swap.
func (r *PrecurationRepository) UpdatePrecurationStatus(ctx context.Context, id string, expected domain.VersionedStatusPrecuration, to domain.PrecurationStatus) (int64, error) {
	var newVersion int64
	err := r.db.QueryRow(ctx, `
		UPDATE precurations
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND version = $4
		RETURNING version`,
		to, id, expected.Status, expected.Version,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if probeErr := r.db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM precurations WHERE id = $1)`, id,
			).Scan(&exists); probeErr == nil && !exists {
				return 0, fmt.Errorf("precuration %s: %w", id, domain.ErrNotFound)
			}
			return 0, fmt.Errorf("precuration %s: %w", id, domain.ErrConcurrentModification)
		}
		return 0, fmt.Errorf("updating precuration status: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"precuration_id": id,
		"to_state":       string(to),
		"new_version":    newVersion,
	}).Info("Precuration status updated")

	return newVersion, nil
}
