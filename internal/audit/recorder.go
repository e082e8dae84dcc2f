// Package audit provides the append-only audit trail recorder and the
// read-side queries over it. Entries are immutable once written; the
// recorder never updates or deletes.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// Recorder writes and reads workflow audit entries. Transition entries are
// appended by the persistence layer atomically with the state change; the
// recorder handles out-of-band events (creation, soft-delete, evidence
// changes) and all history reads.
type Recorder struct {
	store  domain.AuditStore
	logger *logrus.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(store domain.AuditStore, logger *logrus.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one audit entry for an out-of-band event. FromState and
// ToState may be equal for non-transition events.
func (r *Recorder) Record(ctx context.Context, curationID string, from, to domain.CurationStatus, actorID, reason string) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		ID:         uuid.New().String(),
		CurationID: curationID,
		FromState:  from,
		ToState:    to,
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending audit entry for curation %s: %w", curationID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"curation_id": curationID,
		"sequence":    entry.Sequence,
		"actor_id":    actorID,
	}).Debug("Audit entry recorded")

	return entry, nil
}

// History returns a curation's full audit trail in sequence order. The
// trail survives soft-deletion of the curation.
func (r *Recorder) History(ctx context.Context, curationID string) ([]domain.AuditEntry, error) {
	entries, err := r.store.ListByCuration(ctx, curationID)
	if err != nil {
		return nil, fmt.Errorf("listing audit trail for curation %s: %w", curationID, err)
	}
	return entries, nil
}

// Window returns entries across all curations within [from, to), capped at
// limit.
func (r *Recorder) Window(ctx context.Context, from, to time.Time, limit int) ([]domain.AuditEntry, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("audit window: %w: to %s is not after from %s",
			domain.ErrInvalidTimeRange, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	entries, err := r.store.ListByTimeRange(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit window: %w", err)
	}
	return entries, nil
}

// ActivitySummary aggregates transition activity within a time window.
type ActivitySummary struct {
	Total       int                           `json:"total"`
	ByToState   map[domain.CurationStatus]int `json:"by_to_state"`
	ByActor     map[string]int                `json:"by_actor"`
	WindowStart time.Time                     `json:"window_start"`
	WindowEnd   time.Time                     `json:"window_end"`
}

// Summarize computes transition counts by target state and by actor over
// [from, to).
func (r *Recorder) Summarize(ctx context.Context, from, to time.Time) (*ActivitySummary, error) {
	entries, err := r.Window(ctx, from, to, 0)
	if err != nil {
		return nil, err
	}

	summary := &ActivitySummary{
		ByToState:   make(map[domain.CurationStatus]int),
		ByActor:     make(map[string]int),
		WindowStart: from,
		WindowEnd:   to,
	}
	for _, entry := range entries {
		summary.Total++
		summary.ByToState[entry.ToState]++
		summary.ByActor[entry.ActorID]++
	}
	return summary, nil
}
