package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/repository"
)

func newRecorder() (*Recorder, *repository.MemoryStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	store := repository.NewMemoryStore()
	return NewRecorder(store, logger), store
}

func TestRecord_AssignsMonotonicSequence(t *testing.T) {
	recorder, _ := newRecorder()
	ctx := context.Background()

	first, err := recorder.Record(ctx, "cur-1", domain.StatusDraft, domain.StatusDraft, "alice", "curation created")
	require.NoError(t, err)
	second, err := recorder.Record(ctx, "cur-1", domain.StatusDraft, domain.StatusSubmitted, "alice", "")
	require.NoError(t, err)
	other, err := recorder.Record(ctx, "cur-2", domain.StatusDraft, domain.StatusDraft, "bob", "curation created")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	// Sequences are per curation.
	assert.Equal(t, int64(1), other.Sequence)
}

func TestHistory_ReturnsEntriesInOrder(t *testing.T) {
	recorder, _ := newRecorder()
	ctx := context.Background()

	states := []domain.CurationStatus{
		domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusApproved,
	}
	from := domain.StatusDraft
	for _, to := range states {
		_, err := recorder.Record(ctx, "cur-1", from, to, "alice", "")
		require.NoError(t, err)
		from = to
	}

	entries, err := recorder.History(ctx, "cur-1")
	require.NoError(t, err)
	require.Len(t, entries, len(states))
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Sequence)
		assert.Equal(t, states[i], entry.ToState)
	}
}

func TestHistory_EmptyForUnknownCuration(t *testing.T) {
	recorder, _ := newRecorder()

	entries, err := recorder.History(context.Background(), "no-such")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWindow_RejectsInvertedRange(t *testing.T) {
	recorder, _ := newRecorder()
	now := time.Now().UTC()

	_, err := recorder.Window(context.Background(), now, now.Add(-time.Hour), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTimeRange))
}

func TestWindow_FiltersAndLimits(t *testing.T) {
	recorder, store := newRecorder()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, &domain.AuditEntry{
			ID:         "entry-" + string(rune('a'+i)),
			CurationID: "cur-1",
			FromState:  domain.StatusDraft,
			ToState:    domain.StatusSubmitted,
			ActorID:    "alice",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	// [base+1m, base+4m) selects entries at offsets 1, 2, 3.
	entries, err := recorder.Window(ctx, base.Add(time.Minute), base.Add(4*time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	limited, err := recorder.Window(ctx, base, base.Add(time.Hour), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.True(t, limited[0].CreatedAt.Before(limited[1].CreatedAt))
}

func TestSummarize_CountsByStateAndActor(t *testing.T) {
	recorder, store := newRecorder()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fixtures := []struct {
		curation string
		to       domain.CurationStatus
		actor    string
	}{
		{"cur-1", domain.StatusSubmitted, "alice"},
		{"cur-1", domain.StatusUnderReview, "bob"},
		{"cur-2", domain.StatusSubmitted, "alice"},
		{"cur-2", domain.StatusUnderReview, "bob"},
		{"cur-2", domain.StatusApproved, "bob"},
	}
	for i, fx := range fixtures {
		err := store.Append(ctx, &domain.AuditEntry{
			ID:         "entry-" + string(rune('a'+i)),
			CurationID: fx.curation,
			ToState:    fx.to,
			ActorID:    fx.actor,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	summary, err := recorder.Summarize(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.ByToState[domain.StatusSubmitted])
	assert.Equal(t, 2, summary.ByToState[domain.StatusUnderReview])
	assert.Equal(t, 1, summary.ByToState[domain.StatusApproved])
	assert.Equal(t, 2, summary.ByActor["alice"])
	assert.Equal(t, 3, summary.ByActor["bob"])
}
