package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// CurationRepository handles curation persistence including the atomic
// transition compare-and-swap.
type CurationRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCurationRepository creates a new curation repository.
func NewCurationRepository(db *pgxpool.Pool, logger *logrus.Logger) *CurationRepository {
	return &CurationRepository{
		db:  db,
		log: logger,
	}
}

// CreateCuration inserts a new curation.
func (r *CurationRepository) CreateCuration(ctx context.Context, curation *domain.Curation) error {
	if err := curation.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO curations (
			id, scope_id, precuration_id, gene_symbol, disease_name,
			status, created_by, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := r.db.Exec(ctx, query,
		curation.ID,
		curation.ScopeID,
		curation.PrecurationID,
		curation.GeneSymbol,
		curation.DiseaseName,
		curation.Status,
		curation.CreatedBy,
		curation.Version,
		curation.CreatedAt,
		curation.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"curation_id": curation.ID,
			"gene_symbol": curation.GeneSymbol,
			"error":       err,
		}).Error("Failed to create curation")
		return fmt.Errorf("creating curation: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"curation_id": curation.ID,
		"gene_symbol": curation.GeneSymbol,
		"scope_id":    curation.ScopeID,
	}).Info("Curation created")

	return nil
}

// GetCuration retrieves a curation by ID, including soft-deleted ones so
// the workflow machine can report deletion explicitly.
func (r *CurationRepository) GetCuration(ctx context.Context, id string) (*domain.Curation, error) {
	query := `
		SELECT id, scope_id, precuration_id, gene_symbol, disease_name,
			   status, created_by, active_review_id, cached_result,
			   version, created_at, updated_at, deleted_at
		FROM curations
		WHERE id = $1`

	curation, err := scanCuration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("curation %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"curation_id": id,
			"error":       err,
		}).Error("Failed to get curation")
		return nil, fmt.Errorf("getting curation: %w", err)
	}
	return curation, nil
}

// ListCurationsByScope retrieves non-deleted curations in a scope with
// pagination, newest first.
func (r *CurationRepository) ListCurationsByScope(ctx context.Context, scopeID string, limit, offset int) ([]*domain.Curation, error) {
	query := `
		SELECT id, scope_id, precuration_id, gene_symbol, disease_name,
			   status, created_by, active_review_id, cached_result,
			   version, created_at, updated_at, deleted_at
		FROM curations
		WHERE scope_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, scopeID, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"scope_id": scopeID,
			"error":    err,
		}).Error("Failed to list curations")
		return nil, fmt.Errorf("listing curations: %w", err)
	}
	defer rows.Close()

	var curations []*domain.Curation
	for rows.Next() {
		curation, err := scanCuration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning curation row: %w", err)
		}
		curations = append(curations, curation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating curation rows: %w", err)
	}
	return curations, nil
}

// SoftDeleteCuration marks a curation deleted while its audit trail stays
// intact.
func (r *CurationRepository) SoftDeleteCuration(ctx context.Context, id, actorID string) error {
	query := `
		UPDATE curations
		SET deleted_at = NOW(), updated_at = NOW(), version = version + 1
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft-deleting curation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("curation %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"curation_id": id,
		"actor_id":    actorID,
	}).Info("Curation soft-deleted")

	return nil
}

// ApplyTransition performs the transition compare-and-swap and appends the
// audit entry in one transaction. The UPDATE is conditioned on the
// expected (status, version) pair; zero affected rows means another writer
// got there first and the whole transaction rolls back.
func (r *CurationRepository) ApplyTransition(ctx context.Context, curationID string, expected domain.VersionedStatus, to domain.CurationStatus, cached *domain.ScoringResult, entry *domain.AuditEntry) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transition transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cachedJSON []byte
	if cached != nil {
		cachedJSON, err = json.Marshal(cached)
		if err != nil {
			return 0, fmt.Errorf("marshaling cached scoring result: %w", err)
		}
	}

	var newVersion int64
	err = tx.QueryRow(ctx, `
		UPDATE curations
		SET status = $1,
			version = version + 1,
			cached_result = COALESCE($2, cached_result),
			updated_at = NOW()
		WHERE id = $3 AND status = $4 AND version = $5 AND deleted_at IS NULL
		RETURNING version`,
		to, cachedJSON, curationID, expected.Status, expected.Version,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.classifyCASFailure(ctx, curationID, expected)
		}
		return 0, fmt.Errorf("applying transition update: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (
			id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		)
		SELECT $1, $2, COALESCE(MAX(sequence), 0) + 1, $3, $4, $5, $6, $7
		FROM audit_entries WHERE curation_id = $2`,
		entry.ID, entry.CurationID, entry.FromState, entry.ToState,
		entry.ActorID, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("appending transition audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transition: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"curation_id": curationID,
		"from_state":  string(expected.Status),
		"to_state":    string(to),
		"new_version": newVersion,
	}).Info("Transition applied")

	return newVersion, nil
}

// classifyCASFailure distinguishes a missing curation from a version
// conflict after the conditional update matched no rows.
func (r *CurationRepository) classifyCASFailure(ctx context.Context, curationID string, expected domain.VersionedStatus) error {
	var status domain.CurationStatus
	var version int64
	err := r.db.QueryRow(ctx,
		`SELECT status, version FROM curations WHERE id = $1 AND deleted_at IS NULL`,
		curationID,
	).Scan(&status, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("curation %s: %w", curationID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("inspecting curation after failed swap: %w", err)
	}
	return fmt.Errorf("curation %s at (%s, v%d), expected (%s, v%d): %w",
		curationID, status, version, expected.Status, expected.Version,
		domain.ErrConcurrentModification)
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCuration(row rowScanner) (*domain.Curation, error) {
	var curation domain.Curation
	var activeReviewID *string
	var cachedJSON []byte

	err := row.Scan(
		&curation.ID,
		&curation.ScopeID,
		&curation.PrecurationID,
		&curation.GeneSymbol,
		&curation.DiseaseName,
		&curation.Status,
		&curation.CreatedBy,
		&activeReviewID,
		&cachedJSON,
		&curation.Version,
		&curation.CreatedAt,
		&curation.UpdatedAt,
		&curation.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if activeReviewID != nil {
		curation.ActiveReviewID = *activeReviewID
	}
	if len(cachedJSON) > 0 {
		var cached domain.ScoringResult
		if err := json.Unmarshal(cachedJSON, &cached); err != nil {
			return nil, fmt.Errorf("unmarshaling cached scoring result: %w", err)
		}
		curation.CachedResult = &cached
	}
	return &curation, nil
}
