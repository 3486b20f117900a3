package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

var messages = map[string]string{
	"required": "this field is required",
	"email":    "invalid email format",
	"min":      "value is too small",
	"max":      "value is too long",
	"len":      "value has the wrong length",
	"numeric":  "value must be numeric",
	"oneof":    "value is not one of the allowed options",
	"mobile":   "invalid mobile number",
	"gt":       "value must be greater than %s",
}

var registerOnce sync.Once

// Register installs the json/form field naming and custom tags on gin's
// validator engine. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return mobilePattern.MatchString(fl.Field().String())
		})
	})
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

// ValidMobile reports whether s looks like a phone number.
func ValidMobile(s string) bool {
	return mobilePattern.MatchString(s)
}

// FieldErrors turns a binding error into a field -> message map. The
// second return is false when err carries no field information.
func FieldErrors(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = message(fe)
		}
		return fields, true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return map[string]string{typeErr.Field: fmt.Sprintf("must be a %s", typeErr.Type.String())}, true
	}

	return nil, false
}

// fieldPath drops the top-level struct name from the namespace, so
// "CreateScheduleRequest.days[0].date" becomes "days[0].date".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, fe.Param())
	}
	return msg
}
