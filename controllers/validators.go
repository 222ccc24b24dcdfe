package controllers

import (
	"errors"
	"reflect"
	"strings"

	"platestyle/styles"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

/************************************************
/**** MARK: VALIDATION TAGS ****/
/************************************************/
const TAG_STYLE = "style"
const TAG_ASPECT_RATIO = "aspectratio"

// RegisterValidators adds the catalog-backed tags to gin's validator and reports
// fields by their form/json name.
func RegisterValidators(catalog *styles.Catalog) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"form", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	if err := v.RegisterValidation(TAG_STYLE, func(fl validator.FieldLevel) bool {
		_, ok := catalog.Get(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation(TAG_ASPECT_RATIO, func(fl validator.FieldLevel) bool {
		return catalog.HasAspectRatio(fl.Field().String())
	})
}
