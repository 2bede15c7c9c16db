package coordinator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
)

var (
	conform  = modifiers.New()
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// prepareInput trims the tagged fields of in and checks it. Failures come
// back as a ValidationError naming the first offending field.
func prepareInput(ctx context.Context, in any) error {
	if err := conform.Struct(ctx, in); err != nil {
		return fmt.Errorf("normalize input: %w", err)
	}
	err := validate.StructCtx(ctx, in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return bookstack.NewValidationError("%s", describeFieldError(fieldErrs[0]))
	}
	return bookstack.NewValidationError("%s", err.Error())
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
