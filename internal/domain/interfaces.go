package domain

import (
	"context"
	"time"
)

// VersionedStatus is the (status, version) pair the caller observed, used
// by the persistence layer's compare-and-swap.
type VersionedStatus struct {
	Status  CurationStatus
	Version int64
}

// CurationStore persists curations. ApplyTransition is the single mutation
// primitive the workflow machine uses: it must atomically compare the
// persisted (status, version) against expected, apply the new state, bump
// the version, store the refreshed cached scoring result when provided,
// and append the audit entry — all in one transaction. A mismatch returns
// ErrConcurrentModification and leaves nothing mutated.
type CurationStore interface {
	CreateCuration(ctx context.Context, curation *Curation) error
	GetCuration(ctx context.Context, id string) (*Curation, error)
	ListCurationsByScope(ctx context.Context, scopeID string, limit, offset int) ([]*Curation, error)
	SoftDeleteCuration(ctx context.Context, id, actorID string) error
	ApplyTransition(ctx context.Context, curationID string, expected VersionedStatus, to CurationStatus, cached *ScoringResult, entry *AuditEntry) (int64, error)
}

// EvidenceStore persists evidence items for a curation.
type EvidenceStore interface {
	SaveEvidence(ctx context.Context, item *EvidenceItem) error
	GetEvidence(ctx context.Context, id string) (*EvidenceItem, error)
	ListEvidence(ctx context.Context, curationID string) ([]EvidenceItem, error)
	DeleteEvidence(ctx context.Context, id string) error
}

// ReviewStore persists peer reviews. A review is open only while pending;
// any decision closes it. GetOpenReview returns ErrNotFound when the
// curation has no pending review.
type ReviewStore interface {
	CreateReview(ctx context.Context, review *Review) error
	GetReview(ctx context.Context, id string) (*Review, error)
	GetOpenReview(ctx context.Context, curationID string) (*Review, error)
	UpdateReviewStatus(ctx context.Context, id string, status ReviewStatus, comment string) error
}

// PrecurationStore persists precurations.
type PrecurationStore interface {
	CreatePrecuration(ctx context.Context, precuration *Precuration) error
	GetPrecuration(ctx context.Context, id string) (*Precuration, error)
	UpdatePrecurationStatus(ctx context.Context, id string, expected VersionedStatusPrecuration, to PrecurationStatus) (int64, error)
}

// VersionedStatusPrecuration is the observed (status, version) pair for a
// precuration compare-and-swap.
type VersionedStatusPrecuration struct {
	Status  PrecurationStatus
	Version int64
}

// AuditStore persists the append-only audit trail. Entries are immutable;
// the store assigns per-curation sequence numbers on append.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByCuration(ctx context.Context, curationID string) ([]AuditEntry, error)
	ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]AuditEntry, error)
}

// PermissionGate is the external scope-permission collaborator consulted
// by the workflow machine's authorization guard.
type PermissionGate interface {
	HasRole(ctx context.Context, actorID, scopeID string, roles ...Role) (bool, error)
}

// Scorer converts an evidence item set into a scoring result. Must be a
// pure, deterministic, order-independent function of its input.
type Scorer interface {
	Score(items []EvidenceItem) *ScoringResult
}

// ScoreCache caches scoring results keyed by (curation, version). The
// cache is only ever a recompute shortcut; entries for superseded versions
// are invalidated on every evidence write and transition.
type ScoreCache interface {
	Get(ctx context.Context, curationID string, version int64) (*ScoringResult, bool)
	Set(ctx context.Context, curationID string, version int64, result *ScoringResult)
	Invalidate(ctx context.Context, curationID string)
}
