// Package workflow implements the curation lifecycle state machine, the
// precuration gate, and the bulk transition coordinator. The machine owns
// no state of its own: every mutation goes through the persistence
// collaborator's atomic compare-and-swap.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// transitionTable declares the legal curation lifecycle edges. Anything
// not listed here fails with ErrIllegalTransition.
var transitionTable = map[domain.CurationStatus]map[domain.CurationStatus]struct{}{
	domain.StatusDraft: {
		domain.StatusSubmitted: {},
	},
	domain.StatusSubmitted: {
		domain.StatusUnderReview: {},
	},
	domain.StatusUnderReview: {
		domain.StatusApproved:         {},
		domain.StatusRejected:         {},
		domain.StatusChangesRequested: {},
	},
	domain.StatusChangesRequested: {
		domain.StatusDraft: {},
	},
}

// requiredRoles maps each target state to the roles that may request the
// transition into it.
var requiredRoles = map[domain.CurationStatus][]domain.Role{
	domain.StatusSubmitted:        {domain.RoleCurator, domain.RoleAdmin},
	domain.StatusUnderReview:      {domain.RoleReviewer, domain.RoleAdmin},
	domain.StatusApproved:         {domain.RoleReviewer, domain.RoleAdmin},
	domain.StatusRejected:         {domain.RoleReviewer, domain.RoleAdmin},
	domain.StatusChangesRequested: {domain.RoleReviewer, domain.RoleAdmin},
	domain.StatusDraft:            {domain.RoleCurator, domain.RoleAdmin},
}

// scoringRequired lists the target states whose transition invokes the
// scoring engine and fails on incomplete evidence.
var scoringRequired = map[domain.CurationStatus]struct{}{
	domain.StatusApproved: {},
}

// Edges returns the declared legal (from, to) pairs. Exposed so the
// legality property can be tested by enumerating the table.
func Edges() [][2]domain.CurationStatus {
	var edges [][2]domain.CurationStatus
	for from, tos := range transitionTable {
		for to := range tos {
			edges = append(edges, [2]domain.CurationStatus{from, to})
		}
	}
	return edges
}

// IsLegalEdge reports whether (from, to) is a declared transition.
func IsLegalEdge(from, to domain.CurationStatus) bool {
	tos, ok := transitionTable[from]
	if !ok {
		return false
	}
	_, ok = tos[to]
	return ok
}

// Machine governs curation lifecycle transitions. All collaborators are
// injected; the machine performs no I/O beyond them.
type Machine struct {
	logger       *logrus.Logger
	curations    domain.CurationStore
	evidence     domain.EvidenceStore
	reviews      domain.ReviewStore
	precurations domain.PrecurationStore
	gate         domain.PermissionGate
	scorer       domain.Scorer
	cache        domain.ScoreCache
}

// NewMachine creates a workflow machine. The cache is optional; pass nil
// to always recompute scoring results.
func NewMachine(
	logger *logrus.Logger,
	curations domain.CurationStore,
	evidence domain.EvidenceStore,
	reviews domain.ReviewStore,
	precurations domain.PrecurationStore,
	gate domain.PermissionGate,
	scorer domain.Scorer,
	cache domain.ScoreCache,
) *Machine {
	return &Machine{
		logger:       logger,
		curations:    curations,
		evidence:     evidence,
		reviews:      reviews,
		precurations: precurations,
		gate:         gate,
		scorer:       scorer,
		cache:        cache,
	}
}

// Transition moves a curation to the requested state. Guards run in order
// — authorization, edge legality, four-eyes, scoring, concurrency — and
// any failure aborts with no state mutation. On success the new state, the
// refreshed cached scoring result, and exactly one audit entry are
// persisted in a single atomic unit.
func (m *Machine) Transition(ctx context.Context, req domain.TransitionRequest, actor domain.Actor) (*domain.TransitionResult, error) {
	curation, err := m.curations.GetCuration(ctx, req.CurationID)
	if err != nil {
		return nil, fmt.Errorf("loading curation %s: %w", req.CurationID, err)
	}
	if curation.IsDeleted() {
		return nil, domain.NewTransitionError(curation.ID, curation.Status, req.ToState, domain.ErrCurationDeleted, "")
	}

	from := curation.Status

	if !req.ToState.IsValid() {
		return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrIllegalTransition,
			fmt.Sprintf("unknown target state %q", req.ToState))
	}

	// A stale observed version can never pass the compare-and-swap, so
	// reject it before the guards run: the caller must see the concurrency
	// kind, not a guard verdict rendered against state it never observed.
	if req.ObservedVersion != 0 && req.ObservedVersion != curation.Version {
		return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrConcurrentModification,
			fmt.Sprintf("observed version %d, current version %d", req.ObservedVersion, curation.Version))
	}

	// Guard 1: actor authorization within the curation's scope.
	if err := m.authorize(ctx, actor, curation.ScopeID, req.ToState); err != nil {
		return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrUnauthorized, err.Error())
	}

	// Guard 2: edge legality.
	if !IsLegalEdge(from, req.ToState) {
		return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrIllegalTransition, "")
	}

	// Guard 3: four-eyes separation between curator and reviewer.
	var openReview *domain.Review
	if req.ToState == domain.StatusUnderReview {
		if err := m.checkReviewerAssignable(ctx, curation, req.ReviewerID); err != nil {
			return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrMissingOrSelfReview, err.Error())
		}
	}
	if req.ToState == domain.StatusApproved || req.ToState == domain.StatusRejected || req.ToState == domain.StatusChangesRequested {
		openReview, err = m.checkOpenReview(ctx, curation)
		if err != nil {
			return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrMissingOrSelfReview, err.Error())
		}
	}

	// Guard 4: scoring on scoring-required transitions.
	var scored *domain.ScoringResult
	if _, required := scoringRequired[req.ToState]; required {
		scored, err = m.scoreCuration(ctx, curation)
		if err != nil {
			return nil, err
		}
		if !scored.IsValid {
			detail := strings.Join(scored.ValidationErrors, "; ")
			return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrScoringIncomplete, detail)
		}
	}

	observed := req.ObservedVersion
	if observed == 0 {
		observed = curation.Version
	}

	entry := &domain.AuditEntry{
		ID:         uuid.New().String(),
		CurationID: curation.ID,
		FromState:  from,
		ToState:    req.ToState,
		ActorID:    actor.ID,
		Reason:     req.Reason,
		CreatedAt:  time.Now().UTC(),
	}

	// Guard 5 + mutation: atomic compare-and-swap with the audit append in
	// the same transaction. Version mismatch surfaces as
	// ErrConcurrentModification and the caller retries on refreshed state.
	newVersion, err := m.curations.ApplyTransition(ctx, curation.ID,
		domain.VersionedStatus{Status: from, Version: observed},
		req.ToState, scored, entry)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, domain.NewTransitionError(curation.ID, from, req.ToState, domain.ErrConcurrentModification, "")
		}
		return nil, fmt.Errorf("applying transition for curation %s: %w", curation.ID, err)
	}

	if m.cache != nil {
		m.cache.Invalidate(ctx, curation.ID)
		if scored != nil {
			m.cache.Set(ctx, curation.ID, newVersion, scored)
		}
	}

	// Post-mutation bookkeeping: open a review when entering review, close
	// it when the transition is the review decision. A bookkeeping failure
	// compensates by swapping the curation back, so it is never stranded in
	// a state whose review record does not exist.
	if req.ToState == domain.StatusUnderReview {
		if err := m.openReview(ctx, curation, req.ReviewerID); err != nil {
			m.revertTransition(ctx, curation, req.ToState, newVersion, actor, "review assignment failed")
			return nil, fmt.Errorf("assigning reviewer for curation %s: %w", curation.ID, err)
		}
	}
	if openReview != nil {
		if err := m.reviews.UpdateReviewStatus(ctx, openReview.ID, reviewStatusFor(req.ToState), req.Reason); err != nil {
			m.revertTransition(ctx, curation, req.ToState, newVersion, actor, "review decision bookkeeping failed")
			return nil, fmt.Errorf("updating review %s: %w", openReview.ID, err)
		}
	}

	m.logger.WithFields(logrus.Fields{
		"curation_id": curation.ID,
		"from_state":  from.String(),
		"to_state":    req.ToState.String(),
		"actor_id":    actor.ID,
		"new_version": newVersion,
		"scored":      scored != nil,
	}).Info("Curation transition applied")

	return &domain.TransitionResult{
		CurationID: curation.ID,
		FromState:  from,
		ToState:    req.ToState,
		NewVersion: newVersion,
		Scoring:    scored,
		Audit:      entry,
	}, nil
}

// ScorePreview computes the current scoring result for a curation without
// transitioning it, serving from the cache when the curation version has
// not moved.
func (m *Machine) ScorePreview(ctx context.Context, curationID string) (*domain.ScoringResult, error) {
	curation, err := m.curations.GetCuration(ctx, curationID)
	if err != nil {
		return nil, fmt.Errorf("loading curation %s: %w", curationID, err)
	}
	if curation.IsDeleted() {
		return nil, fmt.Errorf("curation %s: %w", curationID, domain.ErrCurationDeleted)
	}

	if m.cache != nil {
		if cached, ok := m.cache.Get(ctx, curationID, curation.Version); ok {
			return cached, nil
		}
	}

	result, err := m.scoreCuration(ctx, curation)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		m.cache.Set(ctx, curationID, curation.Version, result)
	}
	return result, nil
}

// CreateCuration opens a new curation from an approved precuration. The
// precuration gate is the only path into the curation lifecycle.
func (m *Machine) CreateCuration(ctx context.Context, precurationID string, actor domain.Actor) (*domain.Curation, error) {
	precuration, err := m.precurations.GetPrecuration(ctx, precurationID)
	if err != nil {
		return nil, fmt.Errorf("loading precuration %s: %w", precurationID, err)
	}
	if precuration.Status != domain.PrecurationApproved {
		return nil, fmt.Errorf("precuration %s in state %s: %w",
			precurationID, precuration.Status, domain.ErrPrecurationNotApproved)
	}

	ok, err := m.gate.HasRole(ctx, actor.ID, precuration.ScopeID, domain.RoleCurator, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("checking scope permission: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("actor %s in scope %s: %w", actor.ID, precuration.ScopeID, domain.ErrUnauthorized)
	}

	now := time.Now().UTC()
	curation := &domain.Curation{
		ID:            uuid.New().String(),
		ScopeID:       precuration.ScopeID,
		PrecurationID: precuration.ID,
		GeneSymbol:    precuration.GeneSymbol,
		DiseaseName:   precuration.DiseaseName,
		Status:        domain.StatusDraft,
		CreatedBy:     actor.ID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.curations.CreateCuration(ctx, curation); err != nil {
		return nil, fmt.Errorf("creating curation: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"curation_id":    curation.ID,
		"precuration_id": precuration.ID,
		"gene_symbol":    curation.GeneSymbol,
		"scope_id":       curation.ScopeID,
	}).Info("Curation created from approved precuration")

	return curation, nil
}

// SoftDelete marks a curation deleted while keeping its audit history
// intact. Requires curator or admin role in the curation's scope.
func (m *Machine) SoftDelete(ctx context.Context, curationID string, actor domain.Actor) error {
	curation, err := m.curations.GetCuration(ctx, curationID)
	if err != nil {
		return fmt.Errorf("loading curation %s: %w", curationID, err)
	}

	ok, err := m.gate.HasRole(ctx, actor.ID, curation.ScopeID, domain.RoleCurator, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("checking scope permission: %w", err)
	}
	if !ok {
		return fmt.Errorf("actor %s in scope %s: %w", actor.ID, curation.ScopeID, domain.ErrUnauthorized)
	}

	if err := m.curations.SoftDeleteCuration(ctx, curationID, actor.ID); err != nil {
		return fmt.Errorf("soft-deleting curation %s: %w", curationID, err)
	}
	if m.cache != nil {
		m.cache.Invalidate(ctx, curationID)
	}

	m.logger.WithFields(logrus.Fields{
		"curation_id": curationID,
		"actor_id":    actor.ID,
	}).Info("Curation soft-deleted")

	return nil
}

// InvalidateScore drops cached scoring results for a curation. Called by
// the boundary whenever evidence items change.
func (m *Machine) InvalidateScore(ctx context.Context, curationID string) {
	if m.cache != nil {
		m.cache.Invalidate(ctx, curationID)
	}
}

// authorize consults the scope permission gate for the transition's
// required roles.
func (m *Machine) authorize(ctx context.Context, actor domain.Actor, scopeID string, to domain.CurationStatus) error {
	roles, ok := requiredRoles[to]
	if !ok {
		return fmt.Errorf("no roles declared for target state %s", to)
	}
	allowed, err := m.gate.HasRole(ctx, actor.ID, scopeID, roles...)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("actor %s lacks any of %v in scope %s", actor.ID, roles, scopeID)
	}
	return nil
}

// checkReviewerAssignable enforces the four-eyes invariant at assignment
// time and the at-most-one-open-review invariant.
func (m *Machine) checkReviewerAssignable(ctx context.Context, curation *domain.Curation, reviewerID string) error {
	if reviewerID == "" {
		return errors.New("reviewer assignment required to enter review")
	}
	if reviewerID == curation.CreatedBy {
		return fmt.Errorf("reviewer %s is the curation author", reviewerID)
	}
	_, err := m.reviews.GetOpenReview(ctx, curation.ID)
	if err == nil {
		return domain.ErrReviewAlreadyOpen
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("checking open review: %w", err)
	}
	return nil
}

// checkOpenReview re-checks the four-eyes invariant at decision time: a
// pending review by someone other than the author must exist. Stores only
// surface pending reviews as open, so a decided review never reaches here.
func (m *Machine) checkOpenReview(ctx context.Context, curation *domain.Curation) (*domain.Review, error) {
	review, err := m.reviews.GetOpenReview(ctx, curation.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.New("no open review for curation")
		}
		return nil, fmt.Errorf("loading open review: %w", err)
	}
	if review.ReviewerID == curation.CreatedBy {
		return nil, fmt.Errorf("reviewer %s is the curation author", review.ReviewerID)
	}
	return review, nil
}

// openReview creates the pending review record after a successful
// transition into under_review.
func (m *Machine) openReview(ctx context.Context, curation *domain.Curation, reviewerID string) error {
	now := time.Now().UTC()
	review := &domain.Review{
		ID:         uuid.New().String(),
		CurationID: curation.ID,
		ReviewerID: reviewerID,
		Status:     domain.ReviewPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return m.reviews.CreateReview(ctx, review)
}

// revertTransition compensates a committed state change whose review
// bookkeeping failed: the curation swaps back to its prior state with a
// compensating audit entry. If another writer has already moved the
// curation on, the revert loses the compare-and-swap and the state stands;
// that is logged and left to the operator.
func (m *Machine) revertTransition(ctx context.Context, curation *domain.Curation, applied domain.CurationStatus, appliedVersion int64, actor domain.Actor, reason string) {
	entry := &domain.AuditEntry{
		ID:         uuid.New().String(),
		CurationID: curation.ID,
		FromState:  applied,
		ToState:    curation.Status,
		ActorID:    actor.ID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := m.curations.ApplyTransition(ctx, curation.ID,
		domain.VersionedStatus{Status: applied, Version: appliedVersion},
		curation.Status, nil, entry)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"curation_id": curation.ID,
			"applied":     applied.String(),
			"revert_to":   curation.Status.String(),
			"error":       err,
		}).Error("Transition revert failed, curation left in applied state")
		return
	}
	if m.cache != nil {
		m.cache.Invalidate(ctx, curation.ID)
	}
	m.logger.WithFields(logrus.Fields{
		"curation_id": curation.ID,
		"applied":     applied.String(),
		"reverted_to": curation.Status.String(),
	}).Warn("Transition reverted after bookkeeping failure")
}

// scoreCuration loads the curation's evidence set and runs the scoring
// engine over it.
func (m *Machine) scoreCuration(ctx context.Context, curation *domain.Curation) (*domain.ScoringResult, error) {
	items, err := m.evidence.ListEvidence(ctx, curation.ID)
	if err != nil {
		return nil, fmt.Errorf("loading evidence for curation %s: %w", curation.ID, err)
	}
	return m.scorer.Score(items), nil
}

// reviewStatusFor maps a decision transition to the review status it
// records.
func reviewStatusFor(to domain.CurationStatus) domain.ReviewStatus {
	switch to {
	case domain.StatusApproved:
		return domain.ReviewApproved
	case domain.StatusRejected:
		return domain.ReviewRejected
	case domain.StatusChangesRequested:
		return domain.ReviewChangesRequested
	default:
		return domain.ReviewPending
	}
}
