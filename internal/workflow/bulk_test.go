package workflow

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

func newBulkFixture(t *testing.T) (*Coordinator, *fixture) {
	t.Helper()
	f := newFixture(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewCoordinator(f.machine, 4, logger), f
}

func TestCoordinator_CurationLockStable(t *testing.T) {
	coordinator, _ := newBulkFixture(t)

	// The same curation always maps to the same mutex, and the lock set is
	// a fixed array that never grows with the IDs seen.
	a := coordinator.curationLock("cur-1")
	b := coordinator.curationLock("cur-1")
	assert.Same(t, a, b)
	assert.Equal(t, lockStripes, len(coordinator.locks))
}

func TestBulkTransition_EmptyBatch(t *testing.T) {
	coordinator, _ := newBulkFixture(t)

	result := coordinator.BulkTransition(context.Background(), nil, curator)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Items)
}

func TestBulkTransition_MixedBatch(t *testing.T) {
	coordinator, f := newBulkFixture(t)
	ctx := context.Background()

	first := f.newCuration(t)
	second := f.newCuration(t)
	third := f.newCuration(t)

	items := []domain.BulkTransitionItem{
		{CurationID: first.ID, ToState: domain.StatusSubmitted},
		// draft -> approved is illegal; this item fails without touching
		// its siblings.
		{CurationID: second.ID, ToState: domain.StatusApproved},
		{CurationID: third.ID, ToState: domain.StatusSubmitted},
		{CurationID: "no-such-curation", ToState: domain.StatusSubmitted},
	}

	result := coordinator.BulkTransition(ctx, items, admin)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Items, len(items))

	// Results come back in input order.
	assert.Equal(t, first.ID, result.Items[0].CurationID)
	assert.True(t, result.Items[0].Success)
	assert.Equal(t, domain.StatusSubmitted, result.Items[0].Result.ToState)

	assert.Equal(t, second.ID, result.Items[1].CurationID)
	assert.False(t, result.Items[1].Success)
	assert.Equal(t, "illegal_transition", result.Items[1].ErrorKind)

	assert.True(t, result.Items[2].Success)

	assert.False(t, result.Items[3].Success)
	assert.Equal(t, "not_found", result.Items[3].ErrorKind)

	// The failed sibling's state is untouched.
	reloaded, err := f.store.GetCuration(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, reloaded.Status)
	assert.Equal(t, int64(1), reloaded.Version)

	// Each success produced exactly one audit entry; the failures none.
	for _, id := range []string{first.ID, third.ID} {
		entries, err := f.store.ListByCuration(ctx, id)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	}
	entries, err := f.store.ListByCuration(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBulkTransition_SameCurationSerialized(t *testing.T) {
	coordinator, f := newBulkFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)

	// Two items targeting the same curation are serialized; whichever runs
	// second observes the refreshed state and fails the legality guard.
	items := []domain.BulkTransitionItem{
		{CurationID: curation.ID, ToState: domain.StatusSubmitted},
		{CurationID: curation.ID, ToState: domain.StatusSubmitted},
	}

	result := coordinator.BulkTransition(ctx, items, curator)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	for _, item := range result.Items {
		if !item.Success {
			assert.Equal(t, "illegal_transition", item.ErrorKind)
		}
	}

	reloaded, err := f.store.GetCuration(ctx, curation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, reloaded.Status)
	assert.Equal(t, int64(2), reloaded.Version)
}

func TestBulkTransition_LargeBatchBoundedConcurrency(t *testing.T) {
	coordinator, f := newBulkFixture(t)
	ctx := context.Background()

	const batch = 20
	items := make([]domain.BulkTransitionItem, batch)
	for i := 0; i < batch; i++ {
		curation := f.newCuration(t)
		items[i] = domain.BulkTransitionItem{CurationID: curation.ID, ToState: domain.StatusSubmitted}
	}

	result := coordinator.BulkTransition(ctx, items, curator)
	assert.Equal(t, batch, result.Succeeded)
	assert.Zero(t, result.Failed)
	for i, item := range result.Items {
		assert.Equal(t, items[i].CurationID, item.CurationID)
		assert.True(t, item.Success)
	}
}

func TestBulkTransition_StaleVersionItemFails(t *testing.T) {
	coordinator, f := newBulkFixture(t)
	ctx := context.Background()
	curation := f.newCuration(t)

	_, err := f.machine.Transition(ctx, domain.TransitionRequest{
		CurationID: curation.ID, ToState: domain.StatusSubmitted,
	}, curator)
	require.NoError(t, err)

	result := coordinator.BulkTransition(ctx, []domain.BulkTransitionItem{
		{CurationID: curation.ID, ToState: domain.StatusUnderReview, ReviewerID: "bob", ObservedVersion: 1},
	}, reviewer)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "concurrent_modification", result.Items[0].ErrorKind)
}
