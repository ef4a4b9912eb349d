package serverutils

import (
	"errors"
	"reflect"
	"strings"

	"rent360-scheduling-be/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateRequest runs the struct's validate tags and reports failures as a
// ValidationError keyed by json field name.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperror.Validation("validate request", err.Error(), nil)
	}

	fields := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		fields[fe.Field()] = describe(fe)
	}
	return apperror.Validation("validate request", "invalid request body", fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	case "uuid":
		return "must be a valid uuid"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
