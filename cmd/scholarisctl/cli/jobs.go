package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/scholaris/scholaris/jobs"
)

var errQueueUnavailable = errors.New("jobs: queue not configured")

// JobsCLI talks to the job queue directly through Redis, bypassing the API.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI connects lazily; the first command surfaces an unreachable Redis.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases the client and inspector connections.
func (c *JobsCLI) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// TriggerOrphanScan enqueues an orphan scan tagged with the "cli" reason.
func (c *JobsCLI) TriggerOrphanScan(ctx context.Context) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errQueueUnavailable
	}
	return c.client.EnqueueOrphanScan(ctx, "cli")
}

// QueueStats is the subset of asynq.QueueInfo printed by "jobs stats".
type QueueStats struct {
	Queue          string `json:"queue"`
	Paused         bool   `json:"paused"`
	Pending        int    `json:"pending"`
	Active         int    `json:"active"`
	Scheduled      int    `json:"scheduled"`
	Retry          int    `json:"retry"`
	Archived       int    `json:"archived"`
	ProcessedToday int    `json:"processedToday"`
	FailedToday    int    `json:"failedToday"`
}

// InspectQueue reads the state of the default queue.
func (c *JobsCLI) InspectQueue(context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errQueueUnavailable
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, fmt.Errorf("inspect %s: %w", jobs.QueueDefault, err)
	}
	return QueueStats{
		Queue:          info.Queue,
		Paused:         info.Paused,
		Pending:        info.Pending,
		Active:         info.Active,
		Scheduled:      info.Scheduled,
		Retry:          info.Retry,
		Archived:       info.Archived,
		ProcessedToday: info.Processed,
		FailedToday:    info.Failed,
	}, nil
}

// ListScheduled returns the first page of tasks waiting for their process time.
func (c *JobsCLI) ListScheduled(_ context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errQueueUnavailable
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// ListArchived returns tasks that exhausted their retries, newest failures first.
func (c *JobsCLI) ListArchived(_ context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errQueueUnavailable
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListArchivedTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
