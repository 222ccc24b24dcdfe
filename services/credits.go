package services

import (
	"time"

	"platestyle/apperrors"
	"platestyle/logging"
	"platestyle/models"

	"github.com/jinzhu/gorm"
)

// CreditService owns every change to User.Credits; each change writes one ledger row
// inside the caller's transaction.
type CreditService struct {
	DB      *gorm.DB
	JobCost int
}

// debit charges cost credits for jobID. Admins are never charged (charged=false).
// The guard in the WHERE clause keeps balances from going negative under concurrency.
func debit(tx *gorm.DB, user models.User, cost int, jobID string, now time.Time) (bool, error) {
	if user.Admin || cost <= 0 {
		return false, nil
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND credits >= ?", user.ID, cost).
		UpdateColumn("credits", gorm.Expr("credits - ?", cost))
	if res.Error != nil {
		return false, apperrors.Internal("failed to debit credits", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, apperrors.PaymentRequired("insufficient credits")
	}

	if err := writeLedger(tx, models.CreditTransaction{
		UserID: user.ID,
		Delta:  -cost,
		Reason: models.CREDIT_REASON_JOB_DEBIT,
		JobID:  jobID,
	}, now); err != nil {
		return false, err
	}
	return true, nil
}

// RefundJob returns the credit charged for job, at most once per charge: the
// credit_charged flag is cleared with a conditional update before the balance moves.
func RefundJob(tx *gorm.DB, job models.GenerationJob, cost int, now time.Time) (bool, error) {
	if cost <= 0 {
		return false, nil
	}

	res := tx.Model(&models.GenerationJob{}).
		Where("id = ? AND credit_charged = ?", job.ID, true).
		UpdateColumn("credit_charged", false)
	if res.Error != nil {
		return false, apperrors.Internal("failed to clear charge flag", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := tx.Model(&models.User{}).
		Where("id = ?", job.UserID).
		UpdateColumn("credits", gorm.Expr("credits + ?", cost)).Error; err != nil {
		return false, apperrors.Internal("failed to refund credits", err)
	}

	if err := writeLedger(tx, models.CreditTransaction{
		UserID: job.UserID,
		Delta:  cost,
		Reason: models.CREDIT_REASON_JOB_REFUND,
		JobID:  job.ID,
	}, now); err != nil {
		return false, err
	}
	return true, nil
}

func writeLedger(tx *gorm.DB, entry models.CreditTransaction, now time.Time) error {
	var user models.User
	if err := tx.Select("id, credits").Where("id = ?", entry.UserID).First(&user).Error; err != nil {
		return apperrors.Internal("failed to read balance", err)
	}
	entry.BalanceAfter = user.Credits
	entry.CreatedAt = &now
	if err := tx.Create(&entry).Error; err != nil {
		return apperrors.Internal("failed to write credit ledger", err)
	}
	return nil
}

// Grant applies an admin balance change. The resulting balance may not be negative.
func (s *CreditService) Grant(actorID, userID int64, delta int, note string) (models.User, error) {
	if delta == 0 {
		return models.User{}, apperrors.Validation("delta must not be zero")
	}

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return user, apperrors.NotFound("user not found")
		}
		return user, apperrors.Internal("failed to load user", err)
	}

	now := time.Now()
	tx := s.DB.Begin()
	res := tx.Model(&models.User{}).
		Where("id = ? AND credits + ? >= 0", userID, delta).
		UpdateColumn("credits", gorm.Expr("credits + ?", delta))
	if res.Error != nil {
		tx.Rollback()
		return user, apperrors.Internal("failed to update credits", res.Error)
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return user, apperrors.Validation("balance cannot go negative")
	}

	if err := writeLedger(tx, models.CreditTransaction{
		UserID:  userID,
		Delta:   delta,
		Reason:  models.CREDIT_REASON_ADMIN_GRANT,
		Note:    note,
		ActorID: actorID,
	}, now); err != nil {
		tx.Rollback()
		return user, err
	}
	if err := tx.Commit().Error; err != nil {
		return user, apperrors.Internal("failed to commit credit grant", err)
	}

	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return user, apperrors.Internal("failed to reload user", err)
	}
	logging.WithUser(userID).Info("credits granted", "delta", delta, "actor_id", actorID, "balance", user.Credits)
	return user, nil
}

// Ledger lists credit transactions, newest first. userID 0 lists everyone.
func (s *CreditService) Ledger(userID int64, req PageRequest) (Page[models.CreditTransaction], error) {
	q := s.DB.Model(&models.CreditTransaction{})
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}

	var total int
	if err := q.Count(&total).Error; err != nil {
		return Page[models.CreditTransaction]{}, apperrors.Internal("failed to count ledger", err)
	}

	var items []models.CreditTransaction
	if err := q.Order("id desc").Offset(req.Offset()).Limit(req.PerPage).Find(&items).Error; err != nil {
		return Page[models.CreditTransaction]{}, apperrors.Internal("failed to list ledger", err)
	}
	return NewPage(items, total, req), nil
}
