package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidator turns validator field errors into a ValidationError keyed
// by field name. Other errors are returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "min":
			fields[fe.Field()] = fmt.Sprintf("must be at least %s characters", fe.Param())
		case "max":
			fields[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
		case "email":
			fields[fe.Field()] = "must be a valid email address"
		case "oneof":
			fields[fe.Field()] = "must be one of: " + fe.Param()
		case "gte":
			fields[fe.Field()] = fmt.Sprintf("must be %s or greater", fe.Param())
		case "datetime":
			fields[fe.Field()] = "must be a date in the form " + fe.Param()
		case "phone":
			fields[fe.Field()] = "must be a valid phone number"
		default:
			fields[fe.Field()] = "is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

// phonePattern accepts an optional leading + and 10 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

// NewValidator returns a validator that reports fields by their json name
// and knows the "phone" tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}
