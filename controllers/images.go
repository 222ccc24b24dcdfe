package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"platestyle/imaging"
	"platestyle/models"
	"platestyle/storage"

	"github.com/gin-gonic/gin"
)

const IMAGE_CACHE_CONTROL = "private, max-age=86400"

// GetImage streams a job's input or result image. Owners and admins only.
// ?download=1 asks the browser to save the file.
func GetImage(c *gin.Context) {
	env := EnvInstance(c)
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	imageType := c.Param("type")
	if imageType != models.IMAGE_TYPE_INPUT && imageType != models.IMAGE_TYPE_RESULT {
		RespondError(c, "type must be input or result", http.StatusBadRequest)
		return
	}

	job, err := env.Jobs.GetForViewer(user, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}

	ref, mime, ok := job.RefFor(imageType)
	if !ok {
		RespondError(c, "image not available", http.StatusNotFound)
		return
	}

	obj, err := env.Store.Open(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			RespondError(c, "image not found", http.StatusNotFound)
			return
		}
		RespondError(c, "failed to read image", http.StatusBadGateway)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = mime
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	headers := map[string]string{"Cache-Control": IMAGE_CACHE_CONTROL}
	if c.Query("download") == "1" {
		filename := fmt.Sprintf("%s-%s.%s", job.ID, imageType, imaging.Extension(contentType))
		headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", filename)
	}

	size := obj.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, contentType, obj.Body, headers)
}
