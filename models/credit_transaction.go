package models

import "time"

/************************************************
/**** MARK: CREDIT REASONS ****/
/************************************************/
const CREDIT_REASON_SIGNUP = "signup"
const CREDIT_REASON_JOB_DEBIT = "job_debit"
const CREDIT_REASON_JOB_REFUND = "job_refund"
const CREDIT_REASON_ADMIN_GRANT = "admin_grant"

// CreditTransaction is one row of the credit ledger.
type CreditTransaction struct {
	ID           int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	UserID       int64      `gorm:"not null;index" json:"user_id"`
	Delta        int        `gorm:"not null" json:"delta"`
	Reason       string     `gorm:"not null;index" json:"reason"`
	Note         string     `gorm:"type:text" json:"note,omitempty"`
	JobID        string     `gorm:"index;default:''" json:"job_id,omitempty"`
	ActorID      int64      `gorm:"not null;default:0" json:"actor_id,omitempty"`
	BalanceAfter int        `gorm:"not null" json:"balance_after"`
	CreatedAt    *time.Time `json:"created_at"`
}
