package models

import (
	"time"
	"unicode/utf8"
)

/************************************************
/**** MARK: JOB STATUS ****/
/************************************************/
const JOB_STATUS_PENDING = "PENDING"
const JOB_STATUS_PROCESSING = "PROCESSING"
const JOB_STATUS_COMPLETED = "COMPLETED"
const JOB_STATUS_FAILED = "FAILED"

/************************************************
/**** MARK: IMAGE TYPES ****/
/************************************************/
const IMAGE_TYPE_INPUT = "input"
const IMAGE_TYPE_RESULT = "result"

// MaxErrorMessageLen bounds what is persisted in ErrorMessage.
const MaxErrorMessageLen = 500

// GenerationJob tracks one uploaded photo from submission to result.
// InputRef and ResultRef are storage references (s3://... or data:...).
type GenerationJob struct {
	ID            string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	UserID        int64      `gorm:"not null;index" json:"user_id"`
	Style         string     `gorm:"not null" json:"style"`
	AspectRatio   string     `gorm:"not null;default:'1:1'" json:"aspect_ratio"`
	Status        string     `gorm:"not null;default:'PENDING';index" json:"status"`
	InputRef      string     `gorm:"type:text" json:"-"`
	InputMime     string     `gorm:"default:''" json:"input_mime"`
	ResultRef     string     `gorm:"type:text" json:"-"`
	ResultMime    string     `gorm:"default:''" json:"result_mime,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	CreditCharged bool       `gorm:"not null;default:false" json:"credit_charged"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	CreatedAt     *time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// HasResult reports whether a result image is available.
func (job GenerationJob) HasResult() bool {
	return job.Status == JOB_STATUS_COMPLETED && job.ResultRef != ""
}

// IsTerminal reports whether the job has finished, successfully or not.
func (job GenerationJob) IsTerminal() bool {
	return job.Status == JOB_STATUS_COMPLETED || job.Status == JOB_STATUS_FAILED
}

// RefFor returns the storage reference and mime type for an image type.
func (job GenerationJob) RefFor(imageType string) (string, string, bool) {
	switch imageType {
	case IMAGE_TYPE_INPUT:
		return job.InputRef, job.InputMime, job.InputRef != ""
	case IMAGE_TYPE_RESULT:
		if !job.HasResult() {
			return "", "", false
		}
		return job.ResultRef, job.ResultMime, true
	}
	return "", "", false
}

func IsValidJobStatus(status string) bool {
	switch status {
	case JOB_STATUS_PENDING, JOB_STATUS_PROCESSING, JOB_STATUS_COMPLETED, JOB_STATUS_FAILED:
		return true
	}
	return false
}

// TruncateError keeps error messages within MaxErrorMessageLen bytes without splitting a rune.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	n := MaxErrorMessageLen - 3
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n] + "..."
}
