package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"platestyle/metrics"

	"golang.org/x/sync/singleflight"
)

// InlineDispatcher runs jobs on goroutines of the current process, at most cap at a time.
// Triggers above the cap are dropped; the job stays PENDING for the poll path or the sweeper.
type InlineDispatcher struct {
	runner  Runner
	sem     chan struct{}
	group   singleflight.Group
	wg      sync.WaitGroup
	base    context.Context
	timeout time.Duration
}

// NewInlineDispatcher runs jobs under base, which outlives the request that triggered them.
func NewInlineDispatcher(base context.Context, runner Runner, capacity int, timeout time.Duration) *InlineDispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	return &InlineDispatcher{
		runner:  runner,
		sem:     make(chan struct{}, capacity),
		base:    base,
		timeout: timeout,
	}
}

func (d *InlineDispatcher) Dispatch(_ context.Context, jobID string, _ bool) (bool, error) {
	select {
	case d.sem <- struct{}{}:
	default:
		metrics.JobTriggersTotal.WithLabelValues("dropped").Inc()
		slog.Info("inline capacity reached, leaving job pending", "job_id", jobID, "capacity", cap(d.sem))
		return false, nil
	}

	metrics.JobTriggersTotal.WithLabelValues("dispatched").Inc()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()

		metrics.InlineWorkersActive.Inc()
		defer metrics.InlineWorkersActive.Dec()

		// Concurrent triggers for one job share a single run.
		_, err, shared := d.group.Do(jobID, func() (any, error) {
			ctx := d.base
			if d.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(d.base, d.timeout)
				defer cancel()
			}
			return nil, d.runner.Run(ctx, jobID)
		})
		if err != nil && !shared {
			slog.Error("inline generation run failed", "job_id", jobID, "error", err)
		}
	}()
	return true, nil
}

// InFlight returns the number of occupied slots.
func (d *InlineDispatcher) InFlight() int {
	return len(d.sem)
}

// Wait blocks until every started run has returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
