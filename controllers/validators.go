package controllers

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"chez-meme/utils"
)

// custom validation tags
const (
	isoDateTag  = "isodate"
	notBlankTag = "notblank"
)

var registerOnce sync.Once

// RegisterValidators adds the custom tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation(isoDateTag, isoDateValidation)
		_ = v.RegisterValidation(notBlankTag, notBlankValidation)
	})
}

func isoDateValidation(fl validator.FieldLevel) bool {
	_, err := utils.ParseDate(fl.Field().String())
	return err == nil
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
