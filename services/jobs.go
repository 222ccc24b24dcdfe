package services

import (
	"context"
	"errors"
	"log/slog"

	"platestyle/apperrors"
	"platestyle/imaging"
	"platestyle/logging"
	"platestyle/metrics"
	"platestyle/models"
	"platestyle/queue"
	"platestyle/storage"
	"platestyle/styles"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/jonboulle/clockwork"
)

// JobService implements the job lifecycle seen by users: submit, list, poll, trigger, retry, delete.
type JobService struct {
	DB           *gorm.DB
	Store        storage.Store
	Catalog      *styles.Catalog
	Dispatcher   queue.Dispatcher
	Debouncer    queue.Debouncer
	Clock        clockwork.Clock
	JobCost      int
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int
}

type SubmitRequest struct {
	Style       string
	AspectRatio string
	Image       []byte
}

type JobFilter struct {
	UserID int64
	Status string
}

type TriggerResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Dispatched bool   `json:"dispatched"`
	Debounced  bool   `json:"debounced"`
}

// Submit validates and normalises the upload, charges the user, persists the PENDING job and dispatches it.
func (s *JobService) Submit(ctx context.Context, user models.User, req SubmitRequest) (models.GenerationJob, error) {
	var job models.GenerationJob

	if _, ok := s.Catalog.Get(req.Style); !ok {
		return job, apperrors.Validation("unknown style")
	}
	if !s.Catalog.HasAspectRatio(req.AspectRatio) {
		return job, apperrors.Validation("unsupported aspect ratio")
	}
	if !user.CanAfford(s.JobCost) {
		return job, apperrors.PaymentRequired("insufficient credits")
	}

	img, err := imaging.Normalize(req.Image, imaging.Limits{
		MaxBytes:     s.MaxBytes,
		MaxDimension: s.MaxDimension,
		MaxPixels:    s.MaxPixels,
	})
	if err != nil {
		return job, imageError(err)
	}

	now := s.Clock.Now()
	job = models.GenerationJob{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Status:      models.JOB_STATUS_PENDING,
		InputMime:   img.MimeType,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}

	ref, err := s.Store.Put(ctx, storage.InputKey(user.ID, job.ID, img.MimeType), img.MimeType, img.Data)
	if err != nil {
		return job, apperrors.External("failed to store image", err)
	}
	job.InputRef = ref

	tx := s.DB.Begin()
	charged, err := debit(tx, user, s.JobCost, job.ID, now)
	if err != nil {
		tx.Rollback()
		s.discard(ctx, ref)
		return models.GenerationJob{}, err
	}
	job.CreditCharged = charged

	if err := tx.Create(&job).Error; err != nil {
		tx.Rollback()
		s.discard(ctx, ref)
		return models.GenerationJob{}, apperrors.Internal("failed to save job", err)
	}
	if err := tx.Commit().Error; err != nil {
		s.discard(ctx, ref)
		return models.GenerationJob{}, apperrors.Internal("failed to commit job", err)
	}

	metrics.JobsSubmittedTotal.Inc()
	logging.WithJob(job.ID).InfoContext(ctx, "job submitted",
		"user_id", user.ID, "style", job.Style, "aspect_ratio", job.AspectRatio, "charged", charged)

	s.dispatch(ctx, job.ID, true)
	return job, nil
}

func imageError(err error) error {
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return apperrors.TooLarge(err.Error())
	case errors.Is(err, imaging.ErrEmpty), errors.Is(err, imaging.ErrUnsupported):
		return apperrors.Validation(err.Error())
	default:
		return apperrors.Internal("failed to process image", err)
	}
}

// List returns jobs newest first. A zero UserID lists every user's jobs.
func (s *JobService) List(filter JobFilter, req PageRequest) (Page[models.GenerationJob], error) {
	q := s.DB.Model(&models.GenerationJob{})
	if filter.UserID > 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		if !models.IsValidJobStatus(filter.Status) {
			return Page[models.GenerationJob]{}, apperrors.Validation("invalid status")
		}
		q = q.Where("status = ?", filter.Status)
	}

	var total int
	if err := q.Count(&total).Error; err != nil {
		return Page[models.GenerationJob]{}, apperrors.Internal("failed to count jobs", err)
	}

	var items []models.GenerationJob
	if err := q.Order("created_at desc").Offset(req.Offset()).Limit(req.PerPage).Find(&items).Error; err != nil {
		return Page[models.GenerationJob]{}, apperrors.Internal("failed to list jobs", err)
	}
	return NewPage(items, total, req), nil
}

// Get returns a job owned by user; other users' jobs are reported as not found.
func (s *JobService) Get(user models.User, id string) (models.GenerationJob, error) {
	return s.find(id, user.ID)
}

// GetForViewer is Get with admin override, used by the image proxy.
func (s *JobService) GetForViewer(user models.User, id string) (models.GenerationJob, error) {
	if user.Admin {
		return s.find(id, 0)
	}
	return s.find(id, user.ID)
}

func (s *JobService) find(id string, ownerID int64) (models.GenerationJob, error) {
	var job models.GenerationJob
	q := s.DB.Where("id = ?", id)
	if ownerID > 0 {
		q = q.Where("user_id = ?", ownerID)
	}
	if err := q.First(&job).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return job, apperrors.NotFound("job not found")
		}
		return job, apperrors.Internal("failed to load job", err)
	}
	return job, nil
}

// Status returns the job and, while it is PENDING, fires a debounced trigger.
func (s *JobService) Status(ctx context.Context, user models.User, id string) (models.GenerationJob, error) {
	job, err := s.Get(user, id)
	if err != nil {
		return job, err
	}
	if job.Status == models.JOB_STATUS_PENDING {
		if _, err := s.fire(ctx, job); err != nil {
			logging.WithJob(job.ID).WarnContext(ctx, "poll trigger failed", "error", err)
		}
	}
	return job, nil
}

// Trigger is the explicit poll-and-trigger entry point. Only PENDING jobs can be triggered.
func (s *JobService) Trigger(ctx context.Context, user models.User, id string) (TriggerResult, error) {
	job, err := s.Get(user, id)
	if err != nil {
		return TriggerResult{}, err
	}
	if job.Status != models.JOB_STATUS_PENDING {
		return TriggerResult{ID: job.ID, Status: job.Status}, apperrors.Conflict("job is not pending")
	}
	return s.fire(ctx, job)
}

func (s *JobService) fire(ctx context.Context, job models.GenerationJob) (TriggerResult, error) {
	res := TriggerResult{ID: job.ID, Status: job.Status}

	debounced, err := s.Debouncer.IsDebounced(ctx, job.ID)
	if err != nil {
		// Fail open: the claim still prevents duplicate runs.
		slog.WarnContext(ctx, "debounce check failed", "job_id", job.ID, "error", err)
	}
	if debounced {
		metrics.JobTriggersTotal.WithLabelValues("debounced").Inc()
		res.Debounced = true
		return res, nil
	}

	ok, err := s.Dispatcher.Dispatch(ctx, job.ID, true)
	if err != nil {
		return res, apperrors.External("failed to dispatch job", err)
	}
	res.Dispatched = ok
	return res, nil
}

func (s *JobService) dispatch(ctx context.Context, jobID string, interactive bool) {
	if _, err := s.Dispatcher.Dispatch(ctx, jobID, interactive); err != nil {
		logging.WithJob(jobID).WarnContext(ctx, "dispatch failed, job left pending for the sweeper", "error", err)
	}
}

// Retry charges again and moves a FAILED job back to PENDING.
func (s *JobService) Retry(ctx context.Context, user models.User, id string) (models.GenerationJob, error) {
	job, err := s.Get(user, id)
	if err != nil {
		return job, err
	}
	if job.Status != models.JOB_STATUS_FAILED {
		return job, apperrors.Conflict("only failed jobs can be retried")
	}
	if !user.CanAfford(s.JobCost) {
		return job, apperrors.PaymentRequired("insufficient credits")
	}

	now := s.Clock.Now()
	tx := s.DB.Begin()
	charged, err := debit(tx, user, s.JobCost, job.ID, now)
	if err != nil {
		tx.Rollback()
		return job, err
	}

	res := tx.Model(&models.GenerationJob{}).
		Where("id = ? AND status = ?", job.ID, models.JOB_STATUS_FAILED).
		UpdateColumns(map[string]any{
			"status":         models.JOB_STATUS_PENDING,
			"error_message":  "",
			"result_ref":     "",
			"result_mime":    "",
			"started_at":     nil,
			"finished_at":    nil,
			"credit_charged": charged,
			"updated_at":     now,
		})
	if res.Error != nil {
		tx.Rollback()
		return job, apperrors.Internal("failed to reset job", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return job, apperrors.Conflict("only failed jobs can be retried")
	}
	if err := tx.Commit().Error; err != nil {
		return job, apperrors.Internal("failed to commit retry", err)
	}

	logging.WithJob(job.ID).InfoContext(ctx, "job retried", "user_id", user.ID, "charged", charged)
	s.dispatch(ctx, job.ID, true)
	return s.find(job.ID, 0)
}

// Delete removes a job and its stored images. Admins may delete any job.
// A PROCESSING job cannot be deleted; a PENDING job that was charged is refunded.
func (s *JobService) Delete(ctx context.Context, user models.User, id string) error {
	ownerID := user.ID
	if user.Admin {
		ownerID = 0
	}
	job, err := s.find(id, ownerID)
	if err != nil {
		return err
	}
	if job.Status == models.JOB_STATUS_PROCESSING {
		return apperrors.Conflict("job is processing")
	}

	now := s.Clock.Now()
	tx := s.DB.Begin()
	if job.Status == models.JOB_STATUS_PENDING {
		if _, err := RefundJob(tx, job, s.JobCost, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	res := tx.Where("id = ? AND status <> ?", job.ID, models.JOB_STATUS_PROCESSING).Delete(&models.GenerationJob{})
	if res.Error != nil {
		tx.Rollback()
		return apperrors.Internal("failed to delete job", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return apperrors.Conflict("job is processing")
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.Internal("failed to commit delete", err)
	}

	s.discard(ctx, job.InputRef)
	s.discard(ctx, job.ResultRef)
	logging.WithJob(job.ID).InfoContext(ctx, "job deleted", "by_user", user.ID, "owner", job.UserID)
	return nil
}

// discard deletes a stored object, logging instead of failing.
func (s *JobService) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.Store.Delete(ctx, ref); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "failed to delete stored object", "error", err)
	}
}
