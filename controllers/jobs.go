package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"platestyle/services"

	"github.com/gin-gonic/gin"
)

type SubmitJobForm struct {
	Style       string `form:"style" binding:"required,style"`
	AspectRatio string `form:"aspect_ratio" binding:"omitempty,aspectratio"`
}

type JobStatusResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

const DEFAULT_ASPECT_RATIO = "1:1"

// multipartOverhead is the room left for form fields and boundaries around the image.
const multipartOverhead = 1 << 20

// SubmitJob accepts a multipart upload (image, style, aspect_ratio) and answers 202 with the PENDING job.
func SubmitJob(c *gin.Context) {
	env := EnvInstance(c)
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := env.Config.Upload.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	var form SubmitJobForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, "image too large", http.StatusRequestEntityTooLarge)
			return
		}
		RespondError(c, bindErrorMessage(err), http.StatusBadRequest)
		return
	}
	if form.AspectRatio == "" {
		form.AspectRatio = DEFAULT_ASPECT_RATIO
	}

	file, err := c.FormFile("image")
	if err != nil {
		RespondError(c, "image is required", http.StatusBadRequest)
		return
	}
	if file.Size > maxBytes {
		RespondError(c, "image too large", http.StatusRequestEntityTooLarge)
		return
	}
	f, err := file.Open()
	if err != nil {
		RespondError(c, "failed to read image", http.StatusBadRequest)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		RespondError(c, "failed to read image", http.StatusBadRequest)
		return
	}

	job, err := env.Jobs.Submit(c.Request.Context(), user, services.SubmitRequest{
		Style:       form.Style,
		AspectRatio: form.AspectRatio,
		Image:       data,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func ListJobs(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	page, err := EnvInstance(c).Jobs.List(services.JobFilter{
		UserID: user.ID,
		Status: c.Query("status"),
	}, PageFromQuery(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, page)
}

func GetJob(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	job, err := EnvInstance(c).Jobs.Get(user, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, job)
}

// GetJobStatus is the polling endpoint; polling a PENDING job also triggers it.
func GetJobStatus(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	job, err := EnvInstance(c).Jobs.Status(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, JobStatusResponse{
		ID:           job.ID,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		UpdatedAt:    job.UpdatedAt,
	})
}

// ProcessJob triggers a PENDING job: 202 when a trigger was fired, 200 when debounced.
// ProcessJob answers 202 only when a run was handed off. Debounced, dropped or already
// queued triggers answer 200 and leave the job PENDING.
func ProcessJob(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	res, err := EnvInstance(c).Jobs.Trigger(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if res.Debounced || !res.Dispatched {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func RetryJob(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	job, err := EnvInstance(c).Jobs.Retry(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// DeleteJob deletes one of the logged user's own jobs, admins included.
func DeleteJob(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	user.Admin = false

	id := c.Param("id")
	if err := EnvInstance(c).Jobs.Delete(c.Request.Context(), user, id); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"id": id, "deleted": true})
}
