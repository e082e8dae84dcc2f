package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the scoring engine and workflow machine.
// Callers match with errors.Is; no local recovery is performed for the
// workflow kinds.
var (
	ErrNotFound = errors.New("not found")

	// Scoring errors. Invalid evidence is recovered locally: the item is
	// excluded from sums and reported in the scoring result.
	ErrInvalidEvidence        = errors.New("invalid evidence input")
	ErrUnsupportedInheritance = errors.New("unsupported inheritance pattern")

	// Workflow errors, surfaced to the caller.
	ErrIllegalTransition       = errors.New("illegal workflow transition")
	ErrUnauthorized            = errors.New("actor not authorized for transition")
	ErrMissingOrSelfReview     = errors.New("missing review or reviewer is the curation author")
	ErrScoringIncomplete       = errors.New("evidence scoring incomplete")
	ErrConcurrentModification  = errors.New("curation modified concurrently")
	ErrPrecurationNotApproved  = errors.New("precuration not approved")
	ErrCurationDeleted         = errors.New("curation is soft-deleted")
	ErrReviewAlreadyOpen       = errors.New("curation already has an open review")
	ErrInvalidStatus           = errors.New("invalid curation status")
	ErrInvalidInheritance      = errors.New("invalid inheritance pattern")
	ErrInvalidEvidenceCategory = errors.New("invalid evidence category")

	// Audit query errors.
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// TransitionError wraps a workflow error kind with the transition that
// failed. Unwrap exposes the sentinel so errors.Is still matches.
type TransitionError struct {
	CurationID string
	From       CurationStatus
	To         CurationStatus
	Kind       error
	Detail     string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("transition %s -> %s for curation %s: %v: %s",
			e.From, e.To, e.CurationID, e.Kind, e.Detail)
	}
	return fmt.Sprintf("transition %s -> %s for curation %s: %v",
		e.From, e.To, e.CurationID, e.Kind)
}

// Unwrap returns the underlying error kind.
func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// NewTransitionError creates a TransitionError for a failed transition.
func NewTransitionError(curationID string, from, to CurationStatus, kind error, detail string) *TransitionError {
	return &TransitionError{
		CurationID: curationID,
		From:       from,
		To:         to,
		Kind:       kind,
		Detail:     detail,
	}
}
