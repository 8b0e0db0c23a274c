// Package validate checks candidate fund settings and reports every offending
// field at once.
package validate

import (
	"fmt"
	"strings"
)

// Kind is the failure class of a single field.
type Kind string

const (
	MissingRequiredField Kind = "MISSING_REQUIRED_FIELD"
	MalformedField       Kind = "MALFORMED_FIELD"
)

// Expect names the semantic type a field must carry.
type Expect string

const (
	ExpectAddress     Expect = "address"
	ExpectText        Expect = "text"
	ExpectDecimal     Expect = "decimal"
	ExpectBoolean     Expect = "boolean"
	ExpectAddressList Expect = "address list"
)

// FieldError is one offending field.
type FieldError struct {
	Field    string      `json:"field"`
	Kind     Kind        `json:"kind"`
	Expected Expect      `json:"expected"`
	Message  string      `json:"message"`
	Value    interface{} `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (expected %s)", e.Field, e.Message, e.Expected)
}

// Validator accumulates field errors.
type Validator struct {
	errors []FieldError
}

// ValidationError bundles every field error of one candidate record.
type ValidationError struct {
	errors []FieldError
}

func New() *Validator {
	return &Validator{errors: make([]FieldError, 0)}
}

// AddError records a prepared field error.
func (v *Validator) AddError(fe FieldError) {
	v.errors = append(v.errors, fe)
}

func (v *Validator) Missing(field string, expected Expect) {
	v.AddError(FieldError{
		Field:    field,
		Kind:     MissingRequiredField,
		Expected: expected,
		Message:  "required field is missing or empty",
	})
}

func (v *Validator) Malformed(field string, expected Expect, message string, value interface{}) {
	v.AddError(FieldError{
		Field:    field,
		Kind:     MalformedField,
		Expected: expected,
		Message:  message,
		Value:    value,
	})
}

func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Err returns nil when no errors were recorded, otherwise a *ValidationError.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	copied := make([]FieldError, len(v.errors))
	copy(copied, v.errors)
	return &ValidationError{errors: copied}
}

func (e *ValidationError) Errors() []FieldError {
	return e.errors
}

// Fields lists the offending field names in report order.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.errors))
	for _, fe := range e.errors {
		out = append(out, fe.Field)
	}
	return out
}

func (e *ValidationError) Error() string {
	switch len(e.errors) {
	case 0:
		return ""
	case 1:
		return "invalid fund settings: " + e.errors[0].Error()
	}
	msgs := make([]string, len(e.errors))
	for i, fe := range e.errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid fund settings (%d fields): %s", len(e.errors), strings.Join(msgs, "; "))
}
