package queue

import (
	"context"
	"strconv"

	"habit-sync/internal/metrics"
)

// SyncBatch executes actions in order as one unit. On the first failure it
// rolls back every step that already succeeded, newest first, and returns a
// *BatchError. Rollback failures are logged and collected, never returned in
// place of the original failure. The persistent queue is not involved.
func (q *Queue) SyncBatch(ctx context.Context, actions []BatchAction) error {
	for i, a := range actions {
		err := a.Execute(ctx)
		if err == nil {
			continue
		}

		q.logger.ErrorErr("batch step failed", err, map[string]string{
			"index": strconv.Itoa(i),
			"name":  a.Name,
		})

		berr := &BatchError{Index: i, Name: a.Name, Err: err}
		for j := i - 1; j >= 0; j-- {
			done := actions[j]
			if done.Rollback == nil {
				continue
			}
			q.metrics.Inc(metrics.BatchRollbacksTotal)
			if rerr := done.Rollback(ctx); rerr != nil {
				q.logger.ErrorErr("batch rollback failed", rerr, map[string]string{
					"index": strconv.Itoa(j),
					"name":  done.Name,
				})
				berr.RollbackErrs = append(berr.RollbackErrs, rerr)
			}
		}
		return berr
	}
	return nil
}
