package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"platestyle/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func ParamID(c *gin.Context, name string) (int64, bool) {
	v := c.Param(name)
	if v == "" {
		RespondError(c, name+" is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// QueryID parses an optional positive integer query parameter; absent means 0.
func QueryID(c *gin.Context, name string) (int64, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// PageFromQuery reads page and per_page; garbage falls back to the defaults.
func PageFromQuery(c *gin.Context) services.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return services.NewPageRequest(page, perPage)
}

// bindErrorMessage turns binding failures into a short client message.
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case TAG_STYLE:
			return "unknown style"
		case TAG_ASPECT_RATIO:
			return "unsupported aspect ratio"
		default:
			return fmt.Sprintf("%s is invalid", field)
		}
	}
	return err.Error()
}
