package workflow

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

const defaultBulkConcurrency = 5

// lockStripes fixes the size of the per-curation lock set. Curation IDs
// hash onto a stripe, so a long-lived coordinator holds a constant number
// of mutexes no matter how many curations pass through it. A stripe
// collision over-serializes two distinct curations; it never under-locks.
const lockStripes = 64

// Coordinator applies one transition request to many curations. Each item
// runs the full guard chain independently; one item's failure never aborts
// or rolls back another's success. Distinct curations are processed
// concurrently behind a semaphore, while items targeting the same curation
// are serialized so the per-curation guard chain stays sequential.
type Coordinator struct {
	machine     *Machine
	logger      *logrus.Logger
	concurrency int

	locks [lockStripes]sync.Mutex
}

// NewCoordinator creates a bulk transition coordinator. A non-positive
// concurrency falls back to the default.
func NewCoordinator(machine *Machine, concurrency int, logger *logrus.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}
	return &Coordinator{
		machine:     machine,
		logger:      logger,
		concurrency: concurrency,
	}
}

// BulkTransition processes the batch and returns itemized results in input
// order plus succeeded/failed counts.
func (c *Coordinator) BulkTransition(ctx context.Context, items []domain.BulkTransitionItem, actor domain.Actor) *domain.BulkTransitionResult {
	result := &domain.BulkTransitionResult{
		Items: make([]domain.BulkItemResult, len(items)),
	}
	if len(items) == 0 {
		return result
	}

	c.logger.WithFields(logrus.Fields{
		"batch_size": len(items),
		"actor_id":   actor.ID,
	}).Info("Starting bulk transition")

	semaphore := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, item domain.BulkTransitionItem) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				result.Items[idx] = domain.BulkItemResult{
					CurationID: item.CurationID,
					Success:    false,
					Error:      ctx.Err().Error(),
					ErrorKind:  "canceled",
				}
				return
			}

			lock := c.curationLock(item.CurationID)
			lock.Lock()
			defer lock.Unlock()

			result.Items[idx] = c.transitionOne(ctx, item, actor)
		}(i, item)
	}
	wg.Wait()

	for _, item := range result.Items {
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	c.logger.WithFields(logrus.Fields{
		"batch_size": len(items),
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
	}).Info("Completed bulk transition")

	return result
}

// transitionOne runs a single item through the machine and captures its
// outcome without letting the error propagate to siblings.
func (c *Coordinator) transitionOne(ctx context.Context, item domain.BulkTransitionItem, actor domain.Actor) domain.BulkItemResult {
	res, err := c.machine.Transition(ctx, domain.TransitionRequest{
		CurationID:      item.CurationID,
		ToState:         item.ToState,
		ObservedVersion: item.ObservedVersion,
		ReviewerID:      item.ReviewerID,
		Reason:          item.Reason,
	}, actor)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"curation_id": item.CurationID,
			"to_state":    item.ToState.String(),
			"error":       err,
		}).Warn("Bulk transition item failed")
		return domain.BulkItemResult{
			CurationID: item.CurationID,
			Success:    false,
			Error:      err.Error(),
			ErrorKind:  errorKind(err),
		}
	}
	return domain.BulkItemResult{
		CurationID: item.CurationID,
		Success:    true,
		Result:     res,
	}
}

// curationLock returns the lock stripe a curation ID hashes onto.
func (c *Coordinator) curationLock(curationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(curationID))
	return &c.locks[h.Sum32()%lockStripes]
}

// errorKind names the sentinel behind a workflow error for programmatic
// handling at the boundary.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrMissingOrSelfReview):
		return "missing_or_self_review"
	case errors.Is(err, domain.ErrScoringIncomplete):
		return "scoring_incomplete"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrCurationDeleted):
		return "curation_deleted"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
