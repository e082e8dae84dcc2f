package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// SQLiteStore implements all persistence interfaces on a local SQLite
// file. It backs the standalone single-process mode where no Postgres is
// available; semantics match the Postgres repositories, including the
// transition compare-and-swap.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database file and schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency; a single writer still serializes
	// the compare-and-swap.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS precurations (
		id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		gene_symbol TEXT NOT NULL,
		disease_name TEXT NOT NULL,
		inheritance_pattern TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS curations (
		id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		precuration_id TEXT NOT NULL REFERENCES precurations(id),
		gene_symbol TEXT NOT NULL,
		disease_name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		active_review_id TEXT,
		cached_result TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS evidence_items (
		id TEXT PRIMARY KEY,
		curation_id TEXT NOT NULL REFERENCES curations(id),
		category TEXT NOT NULL,
		type TEXT NOT NULL,
		data TEXT,
		computed_score REAL,
		validation_status TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		curation_id TEXT NOT NULL REFERENCES curations(id),
		reviewer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		comment TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		curation_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		reason TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE(curation_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_curations_scope ON curations(scope_id);
	CREATE INDEX IF NOT EXISTS idx_evidence_curation ON evidence_items(curation_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_curation ON reviews(curation_id);
	CREATE INDEX IF NOT EXISTS idx_audit_curation ON audit_entries(curation_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_entries(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// CreateCuration inserts a new curation.
func (s *SQLiteStore) CreateCuration(ctx context.Context, curation *domain.Curation) error {
	if err := curation.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curations (
			id, scope_id, precuration_id, gene_symbol, disease_name,
			status, created_by, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		curation.ID, curation.ScopeID, curation.PrecurationID,
		curation.GeneSymbol, curation.DiseaseName,
		string(curation.Status), curation.CreatedBy, curation.Version,
		curation.CreatedAt, curation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert curation: %w", err)
	}
	return nil
}

// GetCuration retrieves a curation by ID, including soft-deleted ones.
func (s *SQLiteStore) GetCuration(ctx context.Context, id string) (*domain.Curation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scope_id, precuration_id, gene_symbol, disease_name,
			status, created_by, active_review_id, cached_result,
			version, created_at, updated_at, deleted_at
		FROM curations WHERE id = ?`, id)

	curation, err := scanSQLiteCuration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("curation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan curation: %w", err)
	}
	return curation, nil
}

// ListCurationsByScope returns non-deleted curations in a scope, newest
// first.
func (s *SQLiteStore) ListCurationsByScope(ctx context.Context, scopeID string, limit, offset int) ([]*domain.Curation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_id, precuration_id, gene_symbol, disease_name,
			status, created_by, active_review_id, cached_result,
			version, created_at, updated_at, deleted_at
		FROM curations
		WHERE scope_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, scopeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query curations: %w", err)
	}
	defer rows.Close()

	var curations []*domain.Curation
	for rows.Next() {
		curation, err := scanSQLiteCuration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan curation row: %w", err)
		}
		curations = append(curations, curation)
	}
	return curations, rows.Err()
}

// SoftDeleteCuration marks a curation deleted.
func (s *SQLiteStore) SoftDeleteCuration(ctx context.Context, id, actorID string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE curations
		SET deleted_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete curation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("curation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ApplyTransition performs the transition compare-and-swap and appends the
// audit entry in one transaction.
func (s *SQLiteStore) ApplyTransition(ctx context.Context, curationID string, expected domain.VersionedStatus, to domain.CurationStatus, cached *domain.ScoringResult, entry *domain.AuditEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cachedJSON any
	if cached != nil {
		payload, err := json.Marshal(cached)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal cached result: %w", err)
		}
		cachedJSON = string(payload)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE curations
		SET status = ?,
			version = version + 1,
			cached_result = COALESCE(?, cached_result),
			updated_at = ?
		WHERE id = ? AND status = ? AND version = ? AND deleted_at IS NULL`,
		string(to), cachedJSON, time.Now().UTC(),
		curationID, string(expected.Status), expected.Version,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to apply transition update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		probeErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM curations WHERE id = ? AND deleted_at IS NULL)`,
			curationID,
		).Scan(&exists)
		if probeErr == nil && !exists {
			return 0, fmt.Errorf("curation %s: %w", curationID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("curation %s: %w", curationID, domain.ErrConcurrentModification)
	}

	var newVersion int64
	if err := tx.QueryRowContext(ctx,
		`SELECT version FROM curations WHERE id = ?`, curationID,
	).Scan(&newVersion); err != nil {
		return 0, fmt.Errorf("failed to read new version: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO audit_entries (
			id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		)
		SELECT ?, ?, COALESCE(MAX(sequence), 0) + 1, ?, ?, ?, ?, ?
		FROM audit_entries WHERE curation_id = ?
		RETURNING sequence`,
		entry.ID, entry.CurationID, string(entry.FromState), string(entry.ToState),
		entry.ActorID, entry.Reason, entry.CreatedAt, entry.CurationID,
	).Scan(&entry.Sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transition: %w", err)
	}
	return newVersion, nil
}

// SaveEvidence inserts or replaces an evidence item.
func (s *SQLiteStore) SaveEvidence(ctx context.Context, item *domain.EvidenceItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence_items (
			id, curation_id, category, type, data,
			computed_score, validation_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			type = excluded.type,
			data = excluded.data,
			computed_score = excluded.computed_score,
			validation_status = excluded.validation_status,
			updated_at = excluded.updated_at`,
		item.ID, item.CurationID, string(item.Category), string(item.Type),
		string(item.Data), item.ComputedScore, string(item.ValidationStatus),
		item.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save evidence item: %w", err)
	}
	return nil
}

// GetEvidence retrieves an evidence item by ID.
func (s *SQLiteStore) GetEvidence(ctx context.Context, id string) (*domain.EvidenceItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, curation_id, category, type, data,
			computed_score, validation_status, created_at, updated_at
		FROM evidence_items WHERE id = ?`, id)

	item, err := scanSQLiteEvidence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evidence item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan evidence item: %w", err)
	}
	return item, nil
}

// ListEvidence returns a curation's evidence items ordered by ID.
func (s *SQLiteStore) ListEvidence(ctx context.Context, curationID string) ([]domain.EvidenceItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, curation_id, category, type, data,
			computed_score, validation_status, created_at, updated_at
		FROM evidence_items
		WHERE curation_id = ?
		ORDER BY id`, curationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence items: %w", err)
	}
	defer rows.Close()

	var items []domain.EvidenceItem
	for rows.Next() {
		item, err := scanSQLiteEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// DeleteEvidence removes an evidence item.
func (s *SQLiteStore) DeleteEvidence(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM evidence_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evidence item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("evidence item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CreateReview inserts a new review, rejecting a reviewer who authored the
// curation.
func (s *SQLiteStore) CreateReview(ctx context.Context, review *domain.Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var author string
	err = tx.QueryRowContext(ctx,
		`SELECT created_by FROM curations WHERE id = ?`, review.CurationID,
	).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("curation %s: %w", review.CurationID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load curation author: %w", err)
	}
	if author == review.ReviewerID {
		return fmt.Errorf("review for curation %s: %w", review.CurationID, domain.ErrMissingOrSelfReview)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (id, curation_id, reviewer_id, status, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.CurationID, review.ReviewerID,
		string(review.Status), review.Comment, review.CreatedAt, review.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE curations SET active_review_id = ? WHERE id = ?`,
		review.ID, review.CurationID)
	if err != nil {
		return fmt.Errorf("failed to link active review: %w", err)
	}

	return tx.Commit()
}

// GetReview retrieves a review by ID.
func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, curation_id, reviewer_id, status, comment, created_at, updated_at
		FROM reviews WHERE id = ?`, id)

	review, err := scanSQLiteReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan review: %w", err)
	}
	return review, nil
}

// GetOpenReview retrieves the curation's pending review, or ErrNotFound.
func (s *SQLiteStore) GetOpenReview(ctx context.Context, curationID string) (*domain.Review, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, curation_id, reviewer_id, status, comment, created_at, updated_at
		FROM reviews
		WHERE curation_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1`, curationID, string(domain.ReviewPending))

	review, err := scanSQLiteReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open review for curation %s: %w", curationID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan open review: %w", err)
	}
	return review, nil
}

// UpdateReviewStatus records the review decision.
func (s *SQLiteStore) UpdateReviewStatus(ctx context.Context, id string, status domain.ReviewStatus, comment string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var curationID string
	err = tx.QueryRowContext(ctx,
		`SELECT curation_id FROM reviews WHERE id = ?`, id,
	).Scan(&curationID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load review: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reviews
		SET status = ?,
			comment = CASE WHEN ? <> '' THEN ? ELSE comment END,
			updated_at = ?
		WHERE id = ?`,
		string(status), comment, comment, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	if status != domain.ReviewPending {
		_, err = tx.ExecContext(ctx,
			`UPDATE curations SET active_review_id = NULL WHERE id = ? AND active_review_id = ?`,
			curationID, id)
		if err != nil {
			return fmt.Errorf("failed to clear active review: %w", err)
		}
	}

	return tx.Commit()
}

// CreatePrecuration inserts a new precuration.
func (s *SQLiteStore) CreatePrecuration(ctx context.Context, precuration *domain.Precuration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO precurations (
			id, scope_id, gene_symbol, disease_name, inheritance_pattern,
			status, created_by, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		precuration.ID, precuration.ScopeID, precuration.GeneSymbol,
		precuration.DiseaseName, string(precuration.InheritancePattern),
		string(precuration.Status), precuration.CreatedBy, precuration.Version,
		precuration.CreatedAt, precuration.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert precuration: %w", err)
	}
	return nil
}

// GetPrecuration retrieves a precuration by ID.
func (s *SQLiteStore) GetPrecuration(ctx context.Context, id string) (*domain.Precuration, error) {
	var precuration domain.Precuration
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scope_id, gene_symbol, disease_name, inheritance_pattern,
			status, created_by, version, created_at, updated_at
		FROM precurations WHERE id = ?`, id,
	).Scan(
		&precuration.ID, &precuration.ScopeID, &precuration.GeneSymbol,
		&precuration.DiseaseName, &precuration.InheritancePattern,
		&precuration.Status, &precuration.CreatedBy, &precuration.Version,
		&precuration.CreatedAt, &precuration.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("precuration %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan precuration: %w", err)
	}
	return &precuration, nil
}

// UpdatePrecurationStatus performs the precuration compare-and-swap.
func (s *SQLiteStore) UpdatePrecurationStatus(ctx context.Context, id string, expected domain.VersionedStatusPrecuration, to domain.PrecurationStatus) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE precurations
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		string(to), time.Now().UTC(), id, string(expected.Status), expected.Version)
	if err != nil {
		return 0, fmt.Errorf("failed to update precuration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		probeErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM precurations WHERE id = ?)`, id,
		).Scan(&exists)
		if probeErr == nil && !exists {
			return 0, fmt.Errorf("precuration %s: %w", id, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("precuration %s: %w", id, domain.ErrConcurrentModification)
	}

	var newVersion int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT version FROM precurations WHERE id = ?`, id,
	).Scan(&newVersion); err != nil {
		return 0, fmt.Errorf("failed to read new version: %w", err)
	}
	return newVersion, nil
}

// Append inserts one audit entry with the next per-curation sequence.
func (s *SQLiteStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_entries (
			id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		)
		SELECT ?, ?, COALESCE(MAX(sequence), 0) + 1, ?, ?, ?, ?, ?
		FROM audit_entries WHERE curation_id = ?
		RETURNING sequence`,
		entry.ID, entry.CurationID, string(entry.FromState), string(entry.ToState),
		entry.ActorID, entry.Reason, entry.CreatedAt, entry.CurationID,
	).Scan(&entry.Sequence)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByCuration retrieves a curation's audit trail in sequence order.
func (s *SQLiteStore) ListByCuration(ctx context.Context, curationID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		FROM audit_entries
		WHERE curation_id = ?
		ORDER BY sequence`, curationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.CurationID, &entry.Sequence,
			&entry.FromState, &entry.ToState, &entry.ActorID,
			&entry.Reason, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListByTimeRange retrieves entries within [from, to), oldest first.
func (s *SQLiteStore) ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, curation_id, sequence, from_state, to_state, actor_id, reason, created_at
		FROM audit_entries
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at`
	args := []any{from, to}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID, &entry.CurationID, &entry.Sequence,
			&entry.FromState, &entry.ToState, &entry.ActorID,
			&entry.Reason, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteCuration(row rowScanner) (*domain.Curation, error) {
	var curation domain.Curation
	var activeReviewID, cachedJSON sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&curation.ID, &curation.ScopeID, &curation.PrecurationID,
		&curation.GeneSymbol, &curation.DiseaseName,
		&curation.Status, &curation.CreatedBy,
		&activeReviewID, &cachedJSON,
		&curation.Version, &curation.CreatedAt, &curation.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if activeReviewID.Valid {
		curation.ActiveReviewID = activeReviewID.String
	}
	if cachedJSON.Valid && cachedJSON.String != "" {
		var cached domain.ScoringResult
		if err := json.Unmarshal([]byte(cachedJSON.String), &cached); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
		}
		curation.CachedResult = &cached
	}
	if deletedAt.Valid {
		curation.DeletedAt = &deletedAt.Time
	}
	return &curation, nil
}

func scanSQLiteEvidence(row rowScanner) (*domain.EvidenceItem, error) {
	var item domain.EvidenceItem
	var data sql.NullString

	err := row.Scan(
		&item.ID, &item.CurationID, &item.Category, &item.Type, &data,
		&item.ComputedScore, &item.ValidationStatus,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if data.Valid && data.String != "" {
		item.Data = []byte(data.String)
	}
	return &item, nil
}

func scanSQLiteReview(row rowScanner) (*domain.Review, error) {
	var review domain.Review
	var comment sql.NullString

	err := row.Scan(
		&review.ID, &review.CurationID, &review.ReviewerID,
		&review.Status, &comment, &review.CreatedAt, &review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if comment.Valid {
		review.Comment = comment.String
	}
	return &review, nil
}
