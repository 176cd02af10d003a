// Package validation checks bootstrap request bodies with validator/v10 and reports failures
// as validation errors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/id"
)

// Validator wraps go-playground/validator with domain error conversion.
//
// Besides the built-in tags it understands:
//
//	displayname  non-blank after trimming, printable, no control characters
//	jamcode      a six character join code
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the jam rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
		return isDisplayName(fl.Field().String())
	})
	_ = v.RegisterValidation("jamcode", func(fl validator.FieldLevel) bool {
		return id.IsJoinCode(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate validates a struct.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return formatError(err, "")
	}
	return nil
}

// Var validates a single value, reporting failures under field.
func (v *Validator) Var(field string, value any, tag string) error {
	if err := v.v.Var(value, tag); err != nil {
		return formatError(err, field)
	}
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

func isDisplayName(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// formatError converts validator errors to a domain validation error. field names the value
// for Var, whose errors carry no field name of their own.
func formatError(err error, field string) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		name := e.Field()
		if field != "" {
			name = field
		}
		fieldErrors[name] = message(e)
	}

	return domainerrors.ValidationWithDetails("validation failed: "+joinFields(fieldErrors), fieldErrors)
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "displayname":
		return "must contain visible characters only"
	case "jamcode":
		return fmt.Sprintf("must be a %d character join code", id.JoinCodeLength)
	default:
		return "is invalid"
	}
}

// joinFields renders field errors in a stable order.
func joinFields(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + fields[name]
	}
	return strings.Join(parts, ", ")
}
