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

// ReviewRepository handles review persistence. The four-eyes invariant is
// enforced structurally: inserting a review whose reviewer authored the
// curation fails.
type ReviewRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *pgxpool.Pool, logger *logrus.Logger) *ReviewRepository {
	return &ReviewRepository{
		db:  db,
		log: logger,
	}
}

// CreateReview inserts a new review and links it as the curation's active
// review. Rejects a reviewer who authored the curation.
func (r *ReviewRepository) CreateReview(ctx context.Context, review *domain.Review) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning review transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var author string
	err = tx.QueryRow(ctx, `SELECT created_by FROM curations WHERE id = $1`, review.CurationID).Scan(&author)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("curation %s: %w", review.CurationID, domain.ErrNotFound)
		}
		return fmt.Errorf("loading curation author: %w", err)
	}
	if author == review.ReviewerID {
		return fmt.Errorf("review for curation %s: %w", review.CurationID, domain.ErrMissingOrSelfReview)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reviews (id, curation_id, reviewer_id, status, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.CurationID, review.ReviewerID,
		review.Status, review.Comment, review.CreatedAt, review.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating review: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE curations SET active_review_id = $1 WHERE id = $2`,
		review.ID, review.CurationID)
	if err != nil {
		return fmt.Errorf("linking active review: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing review: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"review_id":   review.ID,
		"curation_id": review.CurationID,
		"reviewer_id": review.ReviewerID,
	}).Info("Review opened")

	return nil
}

// GetReview retrieves a review by ID.
func (r *ReviewRepository) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT id, curation_id, reviewer_id, status, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting review: %w", err)
	}
	return review, nil
}

// GetOpenReview retrieves the curation's pending review, or
// ErrNotFound when none is open.
func (r *ReviewRepository) GetOpenReview(ctx context.Context, curationID string) (*domain.Review, error) {
	query := `
		SELECT id, curation_id, reviewer_id, status, comment, created_at, updated_at
		FROM reviews
		WHERE curation_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	review, err := scanReview(r.db.QueryRow(ctx, query, curationID, domain.ReviewPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("open review for curation %s: %w", curationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting open review: %w", err)
	}
	return review, nil
}

// UpdateReviewStatus records the review decision. Any decision, including
// changes_requested, closes the review and clears the curation's active
// review link; the rework cycle opens a fresh review on re-entry.
func (r *ReviewRepository) UpdateReviewStatus(ctx context.Context, id string, status domain.ReviewStatus, comment string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning review update: %w", err)
	}
	defer tx.Rollback(ctx)

	var curationID string
	err = tx.QueryRow(ctx, `
		UPDATE reviews
		SET status = $1,
			comment = CASE WHEN $2 <> '' THEN $2 ELSE comment END,
			updated_at = NOW()
		WHERE id = $3
		RETURNING curation_id`,
		status, comment, id,
	).Scan(&curationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("updating review status: %w", err)
	}

	if status != domain.ReviewPending {
		_, err = tx.Exec(ctx,
			`UPDATE curations SET active_review_id = NULL WHERE id = $1 AND active_review_id = $2`,
			curationID, id)
		if err != nil {
			return fmt.Errorf("clearing active review: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing review update: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"review_id":   id,
		"curation_id": curationID,
		"status":      string(status),
	}).Info("Review decision recorded")

	return nil
}

func scanReview(row rowScanner) (*domain.Review, error) {
	var review domain.Review
	var comment *string

	err := row.Scan(
		&review.ID,
		&review.CurationID,
		&review.ReviewerID,
		&review.Status,
		&comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if comment != nil {
		review.Comment = *comment
	}
	return &review, nil
}
