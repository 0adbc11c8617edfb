package incident

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-behavior-api/internal/models"
)

// Code identifies which rule a field failed.
type Code string

const (
	CodeRequired   Code = "required"
	CodeMinLength  Code = "minLength"
	CodeMaxLength  Code = "maxLength"
	CodePattern    Code = "pattern"
	CodeFutureDate Code = "futureDate"
	CodeInvalid    Code = "invalid"
	CodeRange      Code = "range"
)

// FieldError reports a single field that failed a rule.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldError(field string, code Code, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

// FieldErrors collects every field failure of one submission, in evaluation order.
type FieldErrors []*FieldError

// Add appends err when it is not nil. A field keeps its first error only.
func (f *FieldErrors) Add(err *FieldError) {
	if err == nil || f.Has(err.Field) {
		return
	}
	*f = append(*f, err)
}

// Has reports whether field failed.
func (f FieldErrors) Has(field string) bool {
	return f.Get(field) != nil
}

// Get returns the error recorded for field, if any.
func (f FieldErrors) Get(field string) *FieldError {
	for _, err := range f {
		if err.Field == field {
			return err
		}
	}
	return nil
}

// Map renders the errors as field name to message.
func (f FieldErrors) Map() map[string]string {
	out := make(map[string]string, len(f))
	for _, err := range f {
		out[err.Field] = err.Message
	}
	return out
}

// Codes renders the errors as field name to rule code.
func (f FieldErrors) Codes() map[string]Code {
	out := make(map[string]Code, len(f))
	for _, err := range f {
		out[err.Field] = err.Code
	}
	return out
}

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, err := range f {
		parts = append(parts, err.Error())
	}
	return "invalid incident fields: " + strings.Join(parts, "; ")
}

// IllegalTransitionError reports a status change the lifecycle does not permit.
type IllegalTransitionError struct {
	Current   models.IncidentStatus `json:"current"`
	Requested models.IncidentStatus `json:"requested"`
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.Current, e.Requested)
}

// ImmutableFieldError reports attempts to change write-once fields or any field of a closed incident.
type ImmutableFieldError struct {
	Fields []string `json:"fields"`
}

func (e *ImmutableFieldError) Error() string {
	return "immutable fields cannot change: " + strings.Join(e.Fields, ", ")
}

// Rejection groups every problem found while preparing an update.
type Rejection struct {
	Fields     FieldErrors
	Transition *IllegalTransitionError
	Immutable  *ImmutableFieldError
}

func (r *Rejection) Error() string {
	parts := make([]string, 0, 3)
	for _, err := range r.Unwrap() {
		parts = append(parts, err.Error())
	}
	return "incident update rejected: " + strings.Join(parts, " | ")
}

// Unwrap exposes the individual failures to errors.As.
func (r *Rejection) Unwrap() []error {
	errs := make([]error, 0, 3)
	if len(r.Fields) > 0 {
		errs = append(errs, r.Fields)
	}
	if r.Transition != nil {
		errs = append(errs, r.Transition)
	}
	if r.Immutable != nil {
		errs = append(errs, r.Immutable)
	}
	return errs
}

func (r *Rejection) empty() bool {
	return len(r.Fields) == 0 && r.Transition == nil && r.Immutable == nil
}
