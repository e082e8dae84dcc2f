package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EvidenceItem represents one discrete piece of genetic or experimental
// evidence contributing to a curation's score. Items are created and
// updated by curators, scored by the scoring engine, and never mutated by
// the workflow machine itself.
type EvidenceItem struct {
	ID         string           `json:"id"`
	CurationID string           `json:"curation_id"`
	Category   EvidenceCategory `json:"category"`
	Type       EvidenceType     `json:"type"`

	// Data is the category-specific payload, e.g. family count and
	// inheritance pattern for segregation items.
	Data json.RawMessage `json:"data,omitempty"`

	// ComputedScore is set only by the scoring engine; nil until scored.
	ComputedScore    *float64         `json:"computed_score,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SegregationData is the structured payload of a segregation evidence item,
// consumed by the LOD score calculator.
type SegregationData struct {
	FamilyCount        int                `json:"family_count"`
	InheritancePattern InheritancePattern `json:"inheritance_pattern"`
}

// Validate ensures the evidence item is structurally sound before scoring.
func (e *EvidenceItem) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("evidence item validation: %w", errors.New("ID is required"))
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("evidence item %s: %w: %q", e.ID, ErrInvalidEvidenceCategory, e.Category)
	}
	if e.Type != e.Category.Type() {
		return fmt.Errorf("evidence item %s: %w: type %q does not match category %q",
			e.ID, ErrInvalidEvidence, e.Type, e.Category)
	}
	if e.ValidationStatus != "" && !e.ValidationStatus.IsValid() {
		return fmt.Errorf("evidence item %s: %w: unknown validation status %q",
			e.ID, ErrInvalidEvidence, e.ValidationStatus)
	}
	return nil
}

// CategoryScore is the per-category slice of a scoring breakdown.
type CategoryScore struct {
	Category EvidenceCategory `json:"category"`
	Raw      float64          `json:"raw"`
	Capped   float64          `json:"capped"`
	Max      float64          `json:"max"`
	// ItemIDs lists contributing items sorted by identity, so breakdowns
	// are stable regardless of input order.
	ItemIDs []string `json:"item_ids,omitempty"`
}

// ScoringResult is the value object produced by the scoring engine. It is
// recomputed on demand and cached on the curation for display only; the
// evidence items remain the source of truth.
type ScoringResult struct {
	TotalScore        float64                            `json:"total_score"`
	GeneticScore      float64                            `json:"genetic_score"`
	ExperimentalScore float64                            `json:"experimental_score"`
	Classification    Classification                     `json:"classification"`
	Breakdown         map[EvidenceCategory]CategoryScore `json:"score_breakdown"`
	IsValid           bool                               `json:"is_valid"`
	ValidationErrors  []string                           `json:"validation_errors,omitempty"`
	ScoredAt          time.Time                          `json:"scored_at"`
}

// Curation is the record being scored and reviewed for gene-disease
// validity. Created from an approved precuration; destroyed only by
// soft-delete while audit history exists.
type Curation struct {
	ID            string         `json:"id"`
	ScopeID       string         `json:"scope_id"`
	PrecurationID string         `json:"precuration_id"`
	GeneSymbol    string         `json:"gene_symbol"`
	DiseaseName   string         `json:"disease_name"`
	Status        CurationStatus `json:"status"`
	CreatedBy     string         `json:"created_by"`

	// ActiveReviewID references the at-most-one open review.
	ActiveReviewID string `json:"active_review_id,omitempty"`

	// CachedResult holds the last computed scoring result for display.
	// Must be re-derivable from the evidence items at any time.
	CachedResult *ScoringResult `json:"cached_result,omitempty"`

	// Version is the optimistic concurrency marker compared and swapped by
	// the persistence layer on every transition.
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Validate ensures the curation meets structural requirements.
func (c *Curation) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("curation validation: %w", errors.New("ID is required"))
	}
	if c.ScopeID == "" {
		return fmt.Errorf("curation validation: %w", errors.New("scope ID is required"))
	}
	if c.CreatedBy == "" {
		return fmt.Errorf("curation validation: %w", errors.New("author is required"))
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("curation validation: %w: %q", ErrInvalidStatus, c.Status)
	}
	return nil
}

// IsDeleted reports whether the curation has been soft-deleted.
func (c *Curation) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Precuration establishes the gene-disease-inheritance context prior to
// full curation. Only an approved precuration may spawn a curation.
type Precuration struct {
	ID                 string             `json:"id"`
	ScopeID            string             `json:"scope_id"`
	GeneSymbol         string             `json:"gene_symbol"`
	DiseaseName        string             `json:"disease_name"`
	InheritancePattern InheritancePattern `json:"inheritance_pattern"`
	Status             PrecurationStatus  `json:"status"`
	CreatedBy          string             `json:"created_by"`
	Version            int64              `json:"version"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Review is a peer review of a curation. The four-eyes invariant
// (ReviewerID != curation author) is enforced at assignment and re-checked
// at transition time.
type Review struct {
	ID         string       `json:"id"`
	CurationID string       `json:"curation_id"`
	ReviewerID string       `json:"reviewer_id"`
	Status     ReviewStatus `json:"status"`
	Comment    string       `json:"comment,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// AuditEntry is one immutable record of an attempted or applied workflow
// transition. Entries are append-only and totally ordered per curation by
// sequence number.
type AuditEntry struct {
	ID         string         `json:"id"`
	CurationID string         `json:"curation_id"`
	Sequence   int64          `json:"sequence"`
	FromState  CurationStatus `json:"from_state"`
	ToState    CurationStatus `json:"to_state"`
	ActorID    string         `json:"actor_id"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Actor is the already-authenticated identity performing an operation,
// together with its resolved role set. The core never authenticates; the
// surrounding boundary supplies this explicitly.
type Actor struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the actor holds any of the given roles.
func (a Actor) HasRole(roles ...Role) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// TransitionRequest asks the workflow machine to move one curation to a
// new state.
type TransitionRequest struct {
	CurationID string         `json:"curation_id"`
	ToState    CurationStatus `json:"to_state"`
	// ObservedVersion is the curation version the caller last read; the
	// concurrency guard compares it against the persisted version.
	ObservedVersion int64  `json:"observed_version"`
	ReviewerID      string `json:"reviewer_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// TransitionResult reports a successful transition.
type TransitionResult struct {
	CurationID string         `json:"curation_id"`
	FromState  CurationStatus `json:"from_state"`
	ToState    CurationStatus `json:"to_state"`
	NewVersion int64          `json:"new_version"`
	// Scoring is set when the transition required scoring (e.g. approval).
	Scoring *ScoringResult `json:"scoring,omitempty"`
	Audit   *AuditEntry    `json:"audit,omitempty"`
}

// BulkTransitionItem is one entry of a bulk transition request.
type BulkTransitionItem struct {
	CurationID      string         `json:"curation_id"`
	ToState         CurationStatus `json:"to_state"`
	ObservedVersion int64          `json:"observed_version"`
	ReviewerID      string         `json:"reviewer_id,omitempty"`
	Reason          string         `json:"reason,omitempty"`
}

// BulkItemResult is the per-item outcome of a bulk transition. Exactly one
// of Result and Error is set.
type BulkItemResult struct {
	CurationID string            `json:"curation_id"`
	Success    bool              `json:"success"`
	Result     *TransitionResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	// ErrorKind carries the sentinel name (e.g. "illegal_transition") for
	// programmatic handling at the boundary.
	ErrorKind string `json:"error_kind,omitempty"`
}

// BulkTransitionResult aggregates per-item outcomes in input order.
type BulkTransitionResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkItemResult `json:"items"`
}

// LODResult is the outcome of the LOD score calculation for one
// segregation evidence item.
type LODResult struct {
	LODScore      float64 `json:"lod_score"`
	PointsAwarded float64 `json:"points_awarded"`
	Method        string  `json:"method"`
}
