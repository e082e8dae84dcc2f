package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/repository"
	"github.com/genecurator/gene-validity-server/internal/scoring"
)

// staticGate is a PermissionGate backed by a fixed actor-to-roles map,
// identical across scopes.
type staticGate struct {
	roles map[string][]domain.Role
}

func (g staticGate) HasRole(ctx context.Context, actorID, scopeID string, roles ...domain.Role) (bool, error) {
	held := g.roles[actorID]
	for _, have := range held {
		for _, want := range roles {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

var (
	curator  = domain.Actor{ID: "alice", Roles: []domain.Role{domain.RoleCurator}}
	reviewer = domain.Actor{ID: "bob", Roles: []domain.Role{domain.RoleReviewer}}
	admin    = domain.Actor{ID: "carol", Roles: []domain.Role{domain.RoleAdmin}}
	outsider = domain.Actor{ID: "mallory", Roles: nil}
)

func testGate() staticGate {
	return staticGate{roles: map[string][]domain.Role{
		"alice":  {domain.RoleCurator},
		"bob":    {domain.RoleReviewer},
		"carol":  {domain.RoleAdmin},
		"dave":   {domain.RoleReviewer},
		"eve":    {domain.RoleCurator, domain.RoleReviewer},
		"gina":   {domain.RoleReviewer},
	}}
}

type fixture struct {
	machine *Machine
	store   *repository.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	store := repository.NewMemoryStore()
	machine := NewMachine(logger, store, store, store, store, testGate(), scoring.NewEngine(logger), nil)
	return &fixture{machine: machine, store: store}
}

// newCuration seeds an approved precuration and creates a draft curation
// authored by alice.
func (f *fixture) newCuration(t *testing.T) *domain.Curation {
	t.Helper()
	ctx := context.Background()

	precuration, err := f.machine.CreatePrecuration(ctx, "scope-1", "GAA", "Pompe disease",
		domain.InheritanceAutosomalRecessive, curator)
	require.NoError(t, err)

	_, err = f.machine.TransitionPrecuration(ctx, precuration.ID, domain.PrecurationSubmitted, 0, curator)
	require.NoError(t, err)
	_, err = f.machine.TransitionPrecuration(ctx, precuration.ID, domain.PrecurationApproved, 0, reviewer)
	require.NoError(t, err)

	curation, err := f.machine.CreateCuration(ctx, precuration.ID, curator)
	require.NoError(t, err)
	return curation
}

// addEvidence attaches a valid case-level evidence item worth the given
// points.
func (f *fixture) addEvidence(t *testing.T, curationID string, points float64) {
	t.Helper()
	data, _ := json.Marshal(map[string]float64{"points": points})
	err := f.store.SaveEvidence(context.Background(), &domain.EvidenceItem{
		ID:               uuid.New().String(),
		CurationID:       curationID,
		Category:         domain.CategoryCaseLevel,
		Type:             domain.EvidenceTypeGenetic,
		Data:             data,
		ValidationStatus: domain.ValidationValid,
	})
	require.NoError(t, err)
}

// advanceToReview moves a draft curation into under_review with bob as
// reviewer.
func (f *fixture) advanceToReview(t *testing.T, curation *domain.Curation) {
	t.Helper()
	ctx := context.Background()
	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)
	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusUnderReview, ReviewerID: "bob",
	}, reviewer)
	require.NoError(t, err)
}

func TestTransitionTable_DeclaredEdges(t *testing.T) {
	legal := map[[2]domain.CurationStatus]bool{
		{domain.StatusDraft, domain.StatusSubmitted}:                 true,
		{domain.StatusSubmitted, domain.StatusUnderReview}:           true,
		{domain.StatusUnderReview, domain.StatusApproved}:            true,
		{domain.StatusUnderReview, domain.StatusRejected}:            true,
		{domain.StatusUnderReview, domain.StatusChangesRequested}:    true,
		{domain.StatusChangesRequested, domain.StatusDraft}:          true,
	}

	all := []domain.CurationStatus{
		domain.StatusDraft, domain.StatusSubmitted, domain.StatusUnderReview,
		domain.StatusApproved, domain.StatusRejected, domain.StatusChangesRequested,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]domain.CurationStatus{from, to}], IsLegalEdge(from, to),
				"edge %s -> %s", from, to)
		}
	}
	assert.Len(t, Edges(), len(legal))
}

func TestTransition_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)
	f.addEvidence(t, curation.ID, 8.0)

	f.advanceToReview(t, curation)

	result, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusApproved,
	}, reviewer)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnderReview, result.FromState)
	assert.Equal(t, domain.StatusApproved, result.ToState)
	require.NotNil(t, result.Scoring)
	assert.Equal(t, 8.0, result.Scoring.TotalScore)
	assert.Equal(t, domain.ClassificationStrong, result.Scoring.Classification)

	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, reloaded.Status)
	require.NotNil(t, reloaded.CachedResult)
	assert.Equal(t, 8.0, reloaded.CachedResult.TotalScore)

	entries, err := f.store.ListByCuration(ctx, curation.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.StatusDraft, entries[0].FromState)
	assert.Equal(t, domain.StatusSubmitted, entries[0].ToState)
	assert.Equal(t, domain.StatusUnderReview, entries[2].FromState)
	assert.Equal(t, domain.StatusApproved, entries[2].ToState)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Sequence)
	}
}

func TestTransition_IllegalEdge(t *testing.T) {
	f := newFixture(t)
	curation := f.newCuration(t)

	// draft -> approved is not in the table.
	_, err := f.machine.Transition(context.Background(), domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusApproved,
	}, admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))

	// No audit entry for a failed transition.
	entries, _ := f.store.ListByCuration(context.Background(), curation.ID)
	assert.Empty(t, entries)
}

func TestTransition_Unauthorized(t *testing.T) {
	f := newFixture(t)
	curation := f.newCuration(t)

	tests := []struct {
		name  string
		actor domain.Actor
		to    domain.CurationStatus
	}{
		{"outsider cannot submit", outsider, domain.StatusSubmitted},
		{"curator cannot start review", curator, domain.StatusUnderReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.machine.Transition(context.Background(), domain.TransitionRequest{
				CurationID: curation.ID, ToState: tt.to, ReviewerID: "bob",
			}, tt.actor)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrUnauthorized))
		})
	}
}

func TestTransition_FourEyes_SelfReviewRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// eve holds both roles and authors the curation herself.
	precuration, err := f.machine.CreatePrecuration(ctx, "scope-1", "MYH7", "Hypertrophic cardiomyopathy",
		domain.InheritanceAutosomalDominant, domain.Actor{ID: "eve"})
	require.NoError(t, err)
	_, err = f.machine.TransitionPrecuration(ctx, precuration.ID, domain.PrecurationSubmitted, 0, domain.Actor{ID: "eve"})
	require.NoError(t, err)
	_, err = f.machine.TransitionPrecuration(ctx, precuration.ID, domain.PrecurationApproved, 0, reviewer)
	require.NoError(t, err)
	curation, err := f.machine.CreateCuration(ctx, precuration.ID, domain.Actor{ID: "eve"})
	require.NoError(t, err)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, domain.Actor{ID: "eve"})
	require.NoError(t, err)

	// Assigning the author as reviewer violates four-eyes.
	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusUnderReview, ReviewerID: "eve",
	}, domain.Actor{ID: "eve"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingOrSelfReview))
}

func TestTransition_FourEyes_ApprovalRequiresReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)
	f.addEvidence(t, curation.ID, 3.0)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)

	// Force the status forward without opening a review, then attempt the
	// decision: the re-check at transition time must fail.
	_, err = f.store.ApplyTransition(ctx, curation.ID,
		domain.VersionedStatus{Status: domain.StatusSubmitted, Version: 2},
		domain.StatusUnderReview, nil, &domain.AuditEntry{
			ID: uuid.New().String(), CurationID: curation.ID,
			FromState: domain.StatusSubmitted, ToState: domain.StatusUnderReview, ActorID: "carol",
		})
	require.NoError(t, err)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusApproved,
	}, reviewer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingOrSelfReview))
}

func TestTransition_ScoringGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)
	f.addEvidence(t, curation.ID, 3.0)

	// An unscorable segregation item makes the evidence set incomplete.
	err := f.store.SaveEvidence(ctx, &domain.EvidenceItem{
		ID:         "ev-broken",
		CurationID: curation.ID,
		Category:   domain.CategorySegregation,
		Type:       domain.EvidenceTypeGenetic,
		Data:       json.RawMessage(`{"family_count": 4, "inheritance_pattern": "digenic"}`),
	})
	require.NoError(t, err)

	f.advanceToReview(t, curation)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusApproved,
	}, reviewer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrScoringIncomplete))
	assert.Contains(t, err.Error(), "ev-broken")

	// Rejection does not require scoring and still succeeds.
	result, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusRejected, Reason: "evidence incomplete",
	}, reviewer)
	require.NoError(t, err)
	assert.Nil(t, result.Scoring)
}

func TestTransition_ReworkCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)
	f.addEvidence(t, curation.ID, 2.0)
	f.advanceToReview(t, curation)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusChangesRequested, Reason: "needs segregation data",
	}, reviewer)
	require.NoError(t, err)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusDraft,
	}, curator)
	require.NoError(t, err)

	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, reloaded.Status)

	// The review was closed by the changes_requested decision, so a fresh
	// review cycle can open with a different reviewer.
	f.advanceToReviewWith(t, curation.ID, "dave")
}

func (f *fixture) advanceToReviewWith(t *testing.T, curationID, reviewerID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curationID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)
	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curationID, ToState: domain.StatusUnderReview, ReviewerID: reviewerID,
	}, admin)
	require.NoError(t, err)
}

func TestTransition_ChangesRequestedClosesReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)
	f.addEvidence(t, curation.ID, 2.0)
	f.advanceToReview(t, curation)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusChangesRequested, Reason: "needs LOD data",
	}, reviewer)
	require.NoError(t, err)

	// The decision closes the review and releases the active review link,
	// even though changes_requested is not a terminal curation state.
	_, err = f.store.GetOpenReview(ctx, curation.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.ActiveReviewID)
}

func TestTransition_UnknownTargetState(t *testing.T) {
	f := newFixture(t)
	curation := f.newCuration(t)

	_, err := f.machine.Transition(context.Background(), domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.CurationStatus("archived"),
	}, admin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestTransition_ConcurrentModification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)

	// Both callers observed version 1.
	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted, ObservedVersion: 1,
	}, curator)
	require.NoError(t, err)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted, ObservedVersion: 1,
	}, curator)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))

	// Retry against the refreshed state observes the applied transition.
	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, reloaded.Status)
	assert.Equal(t, int64(2), reloaded.Version)
}

func TestTransition_ConcurrentRace_ExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := f.machine.Transition(ctx, domain.TransitionRequest{
				CurationID: curation.ID, ToState: domain.StatusSubmitted, ObservedVersion: 1,
			}, curator)
			results[idx] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.True(t, errors.Is(err, domain.ErrConcurrentModification))
		}
	}
	assert.Equal(t, 1, wins)
}

func TestTransition_StaleVersionBeatsGuardVerdict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)

	// The caller observed version 1 in draft. Judged against the refreshed
	// state, draft -> submitted would look like an illegal submitted ->
	// submitted edge; the stale version must surface as the concurrency
	// error instead, so the caller knows to reload and retry.
	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted, ObservedVersion: 1,
	}, curator)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))
	assert.False(t, errors.Is(err, domain.ErrIllegalTransition))
}

// flakyReviewStore fails a configurable number of review writes to
// exercise the bookkeeping compensation path.
type flakyReviewStore struct {
	*repository.MemoryStore
	failCreates int
	failUpdates int
}

func (s *flakyReviewStore) CreateReview(ctx context.Context, review *domain.Review) error {
	if s.failCreates > 0 {
		s.failCreates--
		return errors.New("review store unavailable")
	}
	return s.MemoryStore.CreateReview(ctx, review)
}

func (s *flakyReviewStore) UpdateReviewStatus(ctx context.Context, id string, status domain.ReviewStatus, comment string) error {
	if s.failUpdates > 0 {
		s.failUpdates--
		return errors.New("review store unavailable")
	}
	return s.MemoryStore.UpdateReviewStatus(ctx, id, status, comment)
}

func newFlakyFixture(t *testing.T, failCreates, failUpdates int) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := repository.NewMemoryStore()
	flaky := &flakyReviewStore{MemoryStore: store, failCreates: failCreates, failUpdates: failUpdates}
	machine := NewMachine(logger, store, store, flaky, store, testGate(), scoring.NewEngine(logger), nil)
	return &fixture{machine: machine, store: store}
}

func TestTransition_ReviewAssignmentFailureReverts(t *testing.T) {
	f := newFlakyFixture(t, 1, 0)
	ctx := context.Background()
	curation := f.newCuration(t)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusUnderReview, ReviewerID: "bob",
	}, reviewer)
	require.Error(t, err)

	// The committed state change was compensated: the curation is back in
	// submitted with no review record, and the trail shows the swap back.
	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, reloaded.Status)

	_, err = f.store.GetOpenReview(ctx, curation.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	entries, err := f.store.ListByCuration(ctx, curation.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.StatusUnderReview, last.FromState)
	assert.Equal(t, domain.StatusSubmitted, last.ToState)

	// With the store healthy again the retry enters review normally.
	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusUnderReview, ReviewerID: "bob",
	}, reviewer)
	require.NoError(t, err)
}

func TestTransition_DecisionBookkeepingFailureReverts(t *testing.T) {
	f := newFlakyFixture(t, 0, 1)
	ctx := context.Background()
	curation := f.newCuration(t)
	f.advanceToReview(t, curation)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusRejected, Reason: "insufficient evidence",
	}, reviewer)
	require.Error(t, err)

	// The curation stays reviewable, the pending review stays open, and
	// the decision can be retried.
	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, reloaded.Status)

	open, err := f.store.GetOpenReview(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewPending, open.Status)

	_, err = f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusRejected, Reason: "insufficient evidence",
	}, reviewer)
	require.NoError(t, err)
}

func TestSoftDelete_BlocksFurtherTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)

	require.NoError(t, f.machine.SoftDelete(ctx, curation.ID, curator))

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCurationDeleted))
}

func TestCreateCuration_RequiresApprovedPrecuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	precuration, err := f.machine.CreatePrecuration(ctx, "scope-1", "GAA", "Pompe disease",
		domain.InheritanceAutosomalRecessive, curator)
	require.NoError(t, err)

	_, err = f.machine.CreateCuration(ctx, precuration.ID, curator)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPrecurationNotApproved))
}

func TestPrecuration_IllegalEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	precuration, err := f.machine.CreatePrecuration(ctx, "scope-1", "GAA", "Pompe disease",
		domain.InheritanceAutosomalRecessive, curator)
	require.NoError(t, err)

	// draft -> approved skips submission.
	_, err = f.machine.TransitionPrecuration(ctx, precuration.ID, domain.PrecurationApproved, 0, reviewer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
}

func TestCreatePrecuration_InvalidInheritance(t *testing.T) {
	f := newFixture(t)

	_, err := f.machine.CreatePrecuration(context.Background(), "scope-1", "GAA", "Pompe disease",
		domain.InheritancePattern("polygenic"), curator)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInheritance))
}

// recordingCache tracks cache interactions for ScorePreview tests.
type recordingCache struct {
	mu      sync.Mutex
	entries map[string]*domain.ScoringResult
	hits    int
	sets    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*domain.ScoringResult)}
}

func (c *recordingCache) key(curationID string, version int64) string {
	return curationID + ":" + strconv.FormatInt(version, 10)
}

func (c *recordingCache) Get(ctx context.Context, curationID string, version int64) (*domain.ScoringResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.entries[c.key(curationID, version)]
	if ok {
		c.hits++
	}
	return result, ok
}

func (c *recordingCache) Set(ctx context.Context, curationID string, version int64, result *domain.ScoringResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[c.key(curationID, version)] = result
}

func (c *recordingCache) Invalidate(ctx context.Context, curationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if len(key) > len(curationID) && key[:len(curationID)] == curationID {
			delete(c.entries, key)
		}
	}
}

func TestScorePreview_UsesCache(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	store := repository.NewMemoryStore()
	cache := newRecordingCache()
	machine := NewMachine(logger, store, store, store, store, testGate(), scoring.NewEngine(logger), cache)
	f := &fixture{machine: machine, store: store}

	ctx := context.Background()
	curation := f.newCuration(t)
	f.addEvidence(t, curation.ID, 4.5)

	first, err := machine.ScorePreview(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, first.TotalScore)
	assert.Equal(t, 1, cache.sets)

	second, err := machine.ScorePreview(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)

	// A transition bumps the version and invalidates the cached entry.
	_, err = machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)

	_, err = machine.ScorePreview(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
}
