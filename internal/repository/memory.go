package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// MemoryStore is an in-memory implementation of all persistence
// interfaces. It backs unit tests and single-process development runs;
// the compare-and-swap semantics match the Postgres store.
type MemoryStore struct {
	mu           sync.RWMutex
	curations    map[string]*domain.Curation
	evidence     map[string]*domain.EvidenceItem
	reviews      map[string]*domain.Review
	precurations map[string]*domain.Precuration
	audit        map[string][]domain.AuditEntry
	auditSeq     map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		curations:    make(map[string]*domain.Curation),
		evidence:     make(map[string]*domain.EvidenceItem),
		reviews:      make(map[string]*domain.Review),
		precurations: make(map[string]*domain.Precuration),
		audit:        make(map[string][]domain.AuditEntry),
		auditSeq:     make(map[string]int64),
	}
}

// CreateCuration stores a new curation.
func (s *MemoryStore) CreateCuration(ctx context.Context, curation *domain.Curation) error {
	if err := curation.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.curations[curation.ID]; exists {
		return fmt.Errorf("curation %s already exists", curation.ID)
	}
	copied := *curation
	s.curations[curation.ID] = &copied
	return nil
}

// GetCuration returns a copy of the curation or ErrNotFound.
func (s *MemoryStore) GetCuration(ctx context.Context, id string) (*domain.Curation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	curation, ok := s.curations[id]
	if !ok {
		return nil, fmt.Errorf("curation %s: %w", id, domain.ErrNotFound)
	}
	copied := *curation
	return &copied, nil
}

// ListCurationsByScope returns curations in a scope ordered by creation
// time descending.
func (s *MemoryStore) ListCurationsByScope(ctx context.Context, scopeID string, limit, offset int) ([]*domain.Curation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Curation
	for _, curation := range s.curations {
		if curation.ScopeID == scopeID && !curation.IsDeleted() {
			copied := *curation
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// SoftDeleteCuration marks a curation deleted, preserving audit history.
func (s *MemoryStore) SoftDeleteCuration(ctx context.Context, id, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	curation, ok := s.curations[id]
	if !ok {
		return fmt.Errorf("curation %s: %w", id, domain.ErrNotFound)
	}
	now := time.Now().UTC()
	curation.DeletedAt = &now
	curation.UpdatedAt = now
	curation.Version++
	return nil
}

// ApplyTransition performs the atomic compare-and-swap: the persisted
// (status, version) must match expected, or nothing mutates and
// ErrConcurrentModification is returned. The audit entry is appended in
// the same critical section, mirroring the transactional guarantee of the
// Postgres store.
func (s *MemoryStore) ApplyTransition(ctx context.Context, curationID string, expected domain.VersionedStatus, to domain.CurationStatus, cached *domain.ScoringResult, entry *domain.AuditEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curation, ok := s.curations[curationID]
	if !ok {
		return 0, fmt.Errorf("curation %s: %w", curationID, domain.ErrNotFound)
	}
	if curation.Status != expected.Status || curation.Version != expected.Version {
		return 0, fmt.Errorf("curation %s at (%s, v%d), expected (%s, v%d): %w",
			curationID, curation.Status, curation.Version,
			expected.Status, expected.Version, domain.ErrConcurrentModification)
	}

	curation.Status = to
	curation.Version++
	curation.UpdatedAt = time.Now().UTC()
	if cached != nil {
		copied := *cached
		curation.CachedResult = &copied
	}

	s.auditSeq[curationID]++
	stored := *entry
	stored.Sequence = s.auditSeq[curationID]
	s.audit[curationID] = append(s.audit[curationID], stored)
	entry.Sequence = stored.Sequence

	return curation.Version, nil
}

// SaveEvidence stores or replaces an evidence item.
func (s *MemoryStore) SaveEvidence(ctx context.Context, item *domain.EvidenceItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.evidence[item.ID] = &copied
	return nil
}

// GetEvidence returns a copy of the evidence item or ErrNotFound.
func (s *MemoryStore) GetEvidence(ctx context.Context, id string) (*domain.EvidenceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.evidence[id]
	if !ok {
		return nil, fmt.Errorf("evidence item %s: %w", id, domain.ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

// ListEvidence returns all evidence items of a curation sorted by ID.
func (s *MemoryStore) ListEvidence(ctx context.Context, curationID string) ([]domain.EvidenceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.EvidenceItem
	for _, item := range s.evidence {
		if item.CurationID == curationID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteEvidence removes an evidence item.
func (s *MemoryStore) DeleteEvidence(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evidence[id]; !ok {
		return fmt.Errorf("evidence item %s: %w", id, domain.ErrNotFound)
	}
	delete(s.evidence, id)
	return nil
}

// CreateReview stores a new review, enforcing the structural four-eyes
// invariant against the owning curation.
func (s *MemoryStore) CreateReview(ctx context.Context, review *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if curation, ok := s.curations[review.CurationID]; ok && curation.CreatedBy == review.ReviewerID {
		return fmt.Errorf("review for curation %s: %w", review.CurationID, domain.ErrMissingOrSelfReview)
	}
	copied := *review
	s.reviews[review.ID] = &copied
	if curation, ok := s.curations[review.CurationID]; ok {
		curation.ActiveReviewID = review.ID
	}
	return nil
}

// GetReview returns a copy of the review or ErrNotFound.
func (s *MemoryStore) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	copied := *review
	return &copied, nil
}

// GetOpenReview returns the curation's pending review, or ErrNotFound when
// none is open. A changes_requested decision closes the review: the rework
// cycle opens a fresh one on re-entry.
func (s *MemoryStore) GetOpenReview(ctx context.Context, curationID string) (*domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, review := range s.reviews {
		if review.CurationID == curationID && review.Status == domain.ReviewPending {
			copied := *review
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("open review for curation %s: %w", curationID, domain.ErrNotFound)
}

// UpdateReviewStatus records the review decision.
func (s *MemoryStore) UpdateReviewStatus(ctx context.Context, id string, status domain.ReviewStatus, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[id]
	if !ok {
		return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	review.Status = status
	if comment != "" {
		review.Comment = comment
	}
	review.UpdatedAt = time.Now().UTC()
	if status != domain.ReviewPending {
		if curation, ok := s.curations[review.CurationID]; ok && curation.ActiveReviewID == id {
			curation.ActiveReviewID = ""
		}
	}
	return nil
}

// CreatePrecuration stores a new precuration.
func (s *MemoryStore) CreatePrecuration(ctx context.Context, precuration *domain.Precuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.precurations[precuration.ID]; exists {
		return fmt.Errorf("precuration %s already exists", precuration.ID)
	}
	copied := *precuration
	s.precurations[precuration.ID] = &copied
	return nil
}

// GetPrecuration returns a copy of the precuration or ErrNotFound.
func (s *MemoryStore) GetPrecuration(ctx context.Context, id string) (*domain.Precuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	precuration, ok := s.precurations[id]
	if !ok {
		return nil, fmt.Errorf("precuration %s: %w", id, domain.ErrNotFound)
	}
	copied := *precuration
	return &copied, nil
}

// UpdatePrecurationStatus performs the precuration compare-and-swap.
func (s *MemoryStore) UpdatePrecurationStatus(ctx context.Context, id string, expected domain.VersionedStatusPrecuration, to domain.PrecurationStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	precuration, ok := s.precurations[id]
	if !ok {
		return 0, fmt.Errorf("precuration %s: %w", id, domain.ErrNotFound)
	}
	if precuration.Status != expected.Status || precuration.Version != expected.Version {
		return 0, fmt.Errorf("precuration %s: %w", id, domain.ErrConcurrentModification)
	}
	precuration.Status = to
	precuration.Version++
	precuration.UpdatedAt = time.Now().UTC()
	return precuration.Version, nil
}

// Append records an audit entry outside a transition, assigning the next
// per-curation sequence number.
func (s *MemoryStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditSeq[entry.CurationID]++
	stored := *entry
	stored.Sequence = s.auditSeq[entry.CurationID]
	s.audit[entry.CurationID] = append(s.audit[entry.CurationID], stored)
	entry.Sequence = stored.Sequence
	return nil
}

// ListByCuration returns a curation's audit entries in occurrence order.
func (s *MemoryStore) ListByCuration(ctx context.Context, curationID string) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.audit[curationID]
	out := make([]domain.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// ListByTimeRange returns entries across curations within [from, to),
// ordered by occurrence time.
func (s *MemoryStore) ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEntry
	for _, entries := range s.audit {
		for _, entry := range entries {
			if !entry.CreatedAt.Before(from) && entry.CreatedAt.Before(to) {
				out = append(out, entry)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
