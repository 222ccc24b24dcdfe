package workers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"platestyle/logging"
	"platestyle/metrics"
	"platestyle/models"
	"platestyle/services"
	"platestyle/storage"
	"platestyle/styles"
	"platestyle/tools"

	"github.com/jinzhu/gorm"
	"github.com/jonboulle/clockwork"
)

const MSG_PROCESSING_TIMED_OUT = "processing timed out"

// Processor runs one generation job: claim, call the model, store the result, finish.
type Processor struct {
	DB      *gorm.DB
	Store   storage.Store
	Catalog *styles.Catalog
	AI      tools.ImageGenerator
	Clock   clockwork.Clock
	JobCost int
}

// Run implements queue.Runner. It returns nil when another trigger already claimed the job
// and after recording a failed generation; only infrastructure errors are returned.
func (p *Processor) Run(ctx context.Context, jobID string) error {
	log := logging.WithJob(jobID)

	claimed, err := p.Claim(jobID)
	if err != nil {
		return err
	}
	if !claimed {
		metrics.JobTriggersTotal.WithLabelValues("claimed_elsewhere").Inc()
		log.DebugContext(ctx, "job already claimed or not pending")
		return nil
	}

	var job models.GenerationJob
	if err := p.DB.Where("id = ?", jobID).First(&job).Error; err != nil {
		return fmt.Errorf("failed to load claimed job %s: %w", jobID, err)
	}

	start := p.Clock.Now()
	log.InfoContext(ctx, "generation started", "user_id", job.UserID, "style", job.Style, "attempt", job.Attempts)

	ref, mime, err := p.generate(ctx, job)
	if err != nil {
		log.WarnContext(ctx, "generation failed", "error", err)
		return p.Fail(job, err.Error())
	}

	ok, err := p.complete(job, ref, mime)
	if err != nil {
		return err
	}
	if !ok {
		// The sweeper timed the job out or it was deleted meanwhile.
		log.WarnContext(ctx, "job left PROCESSING before completion, discarding result")
		if err := p.Store.Delete(context.WithoutCancel(ctx), ref); err != nil {
			log.WarnContext(ctx, "failed to discard orphan result", "error", err)
		}
		return nil
	}

	metrics.JobsFinishedTotal.WithLabelValues(models.JOB_STATUS_COMPLETED).Inc()
	metrics.JobProcessingDuration.Observe(p.Clock.Since(start).Seconds())
	log.InfoContext(ctx, "generation completed", "duration", p.Clock.Since(start))
	return nil
}

// Claim moves the job from PENDING to PROCESSING. Only one concurrent caller gets true.
func (p *Processor) Claim(jobID string) (bool, error) {
	now := p.Clock.Now()
	res := p.DB.Model(&models.GenerationJob{}).
		Where("id = ? AND status = ?", jobID, models.JOB_STATUS_PENDING).
		UpdateColumns(map[string]any{
			"status":     models.JOB_STATUS_PROCESSING,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", jobID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// generate returns the storage reference and mime type of the stored result.
func (p *Processor) generate(ctx context.Context, job models.GenerationJob) (string, string, error) {
	prompt, ok := p.Catalog.Prompt(job.Style, job.AspectRatio)
	if !ok {
		return "", "", fmt.Errorf("unknown style %q", job.Style)
	}

	obj, err := p.Store.Open(ctx, job.InputRef)
	if err != nil {
		return "", "", fmt.Errorf("failed to read input image: %w", err)
	}
	input, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	if err != nil {
		return "", "", fmt.Errorf("failed to read input image: %w", err)
	}

	mime := job.InputMime
	if mime == "" {
		mime = obj.ContentType
	}

	out, err := p.AI.GenerateImage(ctx, tools.GenerateImageRequest{
		Prompt:      prompt,
		Image:       input,
		MimeType:    mime,
		AspectRatio: job.AspectRatio,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", "", errors.New(MSG_PROCESSING_TIMED_OUT)
		}
		return "", "", err
	}

	ref, err := p.Store.Put(ctx, storage.ResultKey(job.UserID, job.ID, out.MimeType), out.MimeType, out.Data)
	if err != nil {
		return "", "", fmt.Errorf("failed to store result: %w", err)
	}
	return ref, out.MimeType, nil
}

func (p *Processor) complete(job models.GenerationJob, ref, mime string) (bool, error) {
	now := p.Clock.Now()
	res := p.DB.Model(&models.GenerationJob{}).
		Where("id = ? AND status = ?", job.ID, models.JOB_STATUS_PROCESSING).
		UpdateColumns(map[string]any{
			"status":        models.JOB_STATUS_COMPLETED,
			"result_ref":    ref,
			"result_mime":   mime,
			"error_message": "",
			"finished_at":   now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to complete job %s: %w", job.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Fail marks a PROCESSING job FAILED with msg and refunds its credit, both in one transaction.
func (p *Processor) Fail(job models.GenerationJob, msg string) error {
	now := p.Clock.Now()
	tx := p.DB.Begin()
	res := tx.Model(&models.GenerationJob{}).
		Where("id = ? AND status = ?", job.ID, models.JOB_STATUS_PROCESSING).
		UpdateColumns(map[string]any{
			"status":        models.JOB_STATUS_FAILED,
			"error_message": models.TruncateError(msg),
			"finished_at":   now,
			"updated_at":    now,
		})
	if res.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to mark job %s failed: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil
	}

	refunded, err := services.RefundJob(tx, job, p.JobCost, now)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit job failure %s: %w", job.ID, err)
	}

	metrics.JobsFinishedTotal.WithLabelValues(models.JOB_STATUS_FAILED).Inc()
	logging.WithJob(job.ID).Info("job failed", "error_message", models.TruncateError(msg), "refunded", refunded)
	return nil
}
