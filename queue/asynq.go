package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"platestyle/metrics"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used for dispatch.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*asynq.Client)(nil)

type AsynqOptions struct {
	Queue            string
	InteractiveQueue string
	// Timeout bounds one task run on the worker.
	Timeout time.Duration
	// UniqueFor collapses repeated enqueues of the same job inside the window.
	UniqueFor time.Duration
}

type AsynqDispatcher struct {
	client Enqueuer
	opts   AsynqOptions
}

func NewAsynqDispatcher(client Enqueuer, opts AsynqOptions) *AsynqDispatcher {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.InteractiveQueue == "" {
		opts.InteractiveQueue = "interactive"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.UniqueFor <= 0 {
		opts.UniqueFor = 30 * time.Second
	}
	return &AsynqDispatcher{client: client, opts: opts}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string, interactive bool) (bool, error) {
	task, err := NewGenerationTask(jobID)
	if err != nil {
		return false, err
	}

	queueName := d.opts.Queue
	if interactive {
		queueName = d.opts.InteractiveQueue
	}

	// Failures are recorded on the job row; asynq must not retry on its own.
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
		asynq.Timeout(d.opts.Timeout),
		asynq.Unique(d.opts.UniqueFor),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		metrics.JobTriggersTotal.WithLabelValues("already_queued").Inc()
		slog.Debug("generation task already queued", "job_id", jobID)
		return false, nil
	}
	if err != nil {
		slog.Warn("failed to enqueue generation task",
			"task_type", TaskTypeGeneration,
			"job_id", jobID,
			"queue", queueName,
			"error", err,
		)
		return false, err
	}

	metrics.JobTriggersTotal.WithLabelValues("dispatched").Inc()
	return true, nil
}
