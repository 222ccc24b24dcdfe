package workers

import (
	"context"
	"log/slog"
	"time"

	"platestyle/metrics"
	"platestyle/models"
	"platestyle/queue"

	"github.com/jinzhu/gorm"
	"github.com/jonboulle/clockwork"
)

const sweepBatch = 50

// Sweeper recovers jobs that no trigger finished: stale PENDING jobs are dispatched again
// and PROCESSING jobs past the timeout are failed (and refunded).
type Sweeper struct {
	DB                *gorm.DB
	Dispatcher        queue.Dispatcher
	Processor         *Processor
	Clock             clockwork.Clock
	Interval          time.Duration
	PendingGrace      time.Duration
	ProcessingTimeout time.Duration
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := s.Clock.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs a single pass and returns how many jobs were redispatched and timed out.
func (s *Sweeper) Sweep(ctx context.Context) (int, int) {
	return s.redispatchPending(ctx), s.failStuck()
}

func (s *Sweeper) redispatchPending(ctx context.Context) int {
	cutoff := s.Clock.Now().Add(-s.PendingGrace)

	var jobs []models.GenerationJob
	if err := s.DB.
		Select("id").
		Where("status = ? AND updated_at <= ?", models.JOB_STATUS_PENDING, cutoff).
		Order("updated_at asc").
		Limit(sweepBatch).
		Find(&jobs).Error; err != nil {
		slog.Error("sweeper: pending query error", "error", err)
		return 0
	}

	n := 0
	for _, job := range jobs {
		ok, err := s.Dispatcher.Dispatch(ctx, job.ID, false)
		if err != nil {
			slog.Warn("sweeper: dispatch failed", "job_id", job.ID, "error", err)
			continue
		}
		if ok {
			n++
			metrics.SweeperActionsTotal.WithLabelValues("redispatched").Inc()
		}
	}
	if n > 0 {
		slog.Info("sweeper: redispatched pending jobs", "count", n)
	}
	return n
}

func (s *Sweeper) failStuck() int {
	cutoff := s.Clock.Now().Add(-s.ProcessingTimeout)

	var jobs []models.GenerationJob
	if err := s.DB.
		Where("status = ? AND started_at <= ?", models.JOB_STATUS_PROCESSING, cutoff).
		Order("started_at asc").
		Limit(sweepBatch).
		Find(&jobs).Error; err != nil {
		slog.Error("sweeper: processing query error", "error", err)
		return 0
	}

	n := 0
	for _, job := range jobs {
		if err := s.Processor.Fail(job, MSG_PROCESSING_TIMED_OUT); err != nil {
			slog.Error("sweeper: failed to time out job", "job_id", job.ID, "error", err)
			continue
		}
		n++
		metrics.SweeperActionsTotal.WithLabelValues("timed_out").Inc()
	}
	if n > 0 {
		slog.Warn("sweeper: timed out stuck jobs", "count", n)
	}
	return n
}
