// Package validation checks user input before it is sent, using
// go-playground/validator tags, and reports the first problem as a
// validation CLIError naming the field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their JSON names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("nospace", func(fl validator.FieldLevel) bool {
			return !strings.ContainsAny(fl.Field().String(), " \t\r\n")
		})
	})
	return validate
}

// Struct validates s by its `validate` tags.
func Struct(s interface{}) error {
	return convert("", instance().Struct(s))
}

// Var validates one value against tag, reporting problems under field.
func Var(field string, value interface{}, tag string) error {
	return convert(field, instance().Var(value, tag))
}

func convert(field string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return clierrors.NewCLIError(clierrors.ErrorTypeValidation, "Validation error", err)
	}
	fe := verrs[0]
	if field == "" {
		field = fe.Field()
	}
	return clierrors.ValidationError(field, reason(fe))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "cannot be empty"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "is not a valid address"
	case "alphanum":
		return "may only contain letters and digits"
	case "nospace":
		return "cannot contain spaces"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed the %q check", fe.Tag())
	}
}
