package users

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"hyperadmin/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so errors point at the field the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (in CreateInput) Validate() error {
	return structError(validate.Struct(in))
}

func (in UpdateInput) Validate() error {
	return structError(validate.Struct(in))
}

// structError converts the first validator failure into an
// *apperr.ValidationError naming the offending field.
func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Invalid("", err.Error())
	}
	fe := verrs[0]
	return apperr.Invalid(fieldPath(fe.Namespace()), reason(fe))
}

// fieldPath drops the struct name from a namespace such as
// "CreateInput.subscription.tier".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}
