// Package jobs delivers activity-log entries through asynq: the API process
// enqueues them and the worker writes them to the database.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"stockcore/internal/domain/audit"
	"stockcore/pkg/logger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskActivityLog persists one activity-log entry.
	TaskActivityLog = "activity:log"

	activityMaxRetry = 10
	activityTimeout  = 30 * time.Second
)

// NewActivityLogTask constructs an asynq task for a.
func NewActivityLogTask(a audit.Activity) (*asynq.Task, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal activity: %w", err)
	}
	return asynq.NewTask(TaskActivityLog, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(activityMaxRetry),
		asynq.Timeout(activityTimeout),
	), nil
}

// ActivityLogJob writes queued activity entries to a sink.
type ActivityLogJob struct {
	sink audit.Logger
}

// NewActivityLogJob creates the handler. sink is usually the postgres activity repository.
func NewActivityLogJob(sink audit.Logger) *ActivityLogJob {
	return &ActivityLogJob{sink: sink}
}

// Handle processes TaskActivityLog tasks. Undecodable payloads are dropped.
func (j *ActivityLogJob) Handle(ctx context.Context, t *asynq.Task) error {
	var a audit.Activity
	if err := json.Unmarshal(t.Payload(), &a); err != nil {
		logger.Error(ctx, "drop undecodable activity task", "error", err)
		return fmt.Errorf("decode activity: %v: %w", err, asynq.SkipRetry)
	}
	if err := j.sink.LogActivity(ctx, a); err != nil {
		return fmt.Errorf("persist activity %s %s: %w", a.Action, a.EntityID, err)
	}
	return nil
}
