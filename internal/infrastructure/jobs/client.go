package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"stockcore/internal/domain/audit"
)

// Enqueuer is the part of *asynq.Client the producer needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ActivityEnqueuer implements audit.Logger by queueing entries for the worker.
type ActivityEnqueuer struct {
	client Enqueuer
}

var _ audit.Logger = (*ActivityEnqueuer)(nil)

// NewActivityEnqueuer creates a producer over client.
func NewActivityEnqueuer(client Enqueuer) *ActivityEnqueuer {
	return &ActivityEnqueuer{client: client}
}

// LogActivity enqueues a.
func (e *ActivityEnqueuer) LogActivity(ctx context.Context, a audit.Activity) error {
	task, err := NewActivityLogTask(a)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}
