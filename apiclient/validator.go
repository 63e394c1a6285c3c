package apiclient

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Validator is the injected schema-validation capability. A nil or
// empty issue list means the value is valid.
type Validator interface {
	Validate(v any) []ValidationIssue
}

// ValidatorFunc adapts a plain function to the Validator capability.
type ValidatorFunc func(v any) []ValidationIssue

// Validate implements Validator.
func (f ValidatorFunc) Validate(v any) []ValidationIssue {
	return f(v)
}

// StructValidator validates struct values against their `validate`
// tags using go-playground/validator.
type StructValidator struct {
	v *validator.Validate
}

// NewStructValidator creates a tag-driven struct validator.
func NewStructValidator() *StructValidator {
	return &StructValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements Validator. Non-struct input is reported as a
// single issue rather than a panic, since response payloads come from
// the wire.
func (s *StructValidator) Validate(v any) []ValidationIssue {
	err := s.v.Struct(v)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return []ValidationIssue{{
			Rule:    "struct",
			Message: invalid.Error(),
		}}
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		issues := make([]ValidationIssue, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			issues = append(issues, ValidationIssue{
				Field:   fe.Namespace(),
				Rule:    fe.Tag(),
				Message: fe.Error(),
			})
		}
		return issues
	}

	return []ValidationIssue{{Message: err.Error()}}
}
