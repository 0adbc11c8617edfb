package incident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-behavior-api/internal/models"
)

// Validation tags shared by the form rules and the query DTOs.
const (
	TagTrimmedRequired   = "trimmed_required"
	TagTrimmedMin        = "trimmed_min"
	TagTrimmedMax        = "trimmed_max"
	TagIncidentStatus    = "incident_status"
	TagSeverityLevel     = "severity_level"
	TagIncidentType      = "incident_type"
	TagFollowUpFrequency = "follow_up_frequency"
)

var tagCodes = map[string]Code{
	TagTrimmedRequired:   CodeRequired,
	TagTrimmedMin:        CodeMinLength,
	TagTrimmedMax:        CodeMaxLength,
	Narrative.Name:       CodePattern,
	"gte":                CodeRange,
	"lte":                CodeRange,
	TagIncidentStatus:    CodeInvalid,
	TagSeverityLevel:     CodeInvalid,
	TagIncidentType:      CodeInvalid,
	TagFollowUpFrequency: CodeInvalid,
}

// NewValidator returns a validator with the incident tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the incident tags on v. Enum tags compare case-insensitively.
func RegisterValidations(v *validator.Validate) {
	v.RegisterValidation(TagTrimmedRequired, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterValidation(TagTrimmedMin, func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= limit
	})
	v.RegisterValidation(TagTrimmedMax, func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) <= limit
	})
	v.RegisterValidation(Narrative.Name, func(fl validator.FieldLevel) bool {
		return Narrative.Allows(fl.Field().String())
	})
	v.RegisterValidation(TagIncidentStatus, func(fl validator.FieldLevel) bool {
		return models.IncidentStatus(upper(fl.Field().String())).IsValid()
	})
	v.RegisterValidation(TagSeverityLevel, func(fl validator.FieldLevel) bool {
		return models.SeverityLevel(upper(fl.Field().String())).IsValid()
	})
	v.RegisterValidation(TagIncidentType, func(fl validator.FieldLevel) bool {
		return models.IncidentType(upper(fl.Field().String())).IsValid()
	})
	v.RegisterValidation(TagFollowUpFrequency, func(fl validator.FieldLevel) bool {
		return models.FollowUpFrequency(upper(fl.Field().String())).IsValid()
	})
}

// checkVar runs tag against value and converts the first failure into a FieldError.
func checkVar(v *validator.Validate, field string, value interface{}, tag string) *FieldError {
	if tag == "" {
		return nil
	}
	err := v.Var(value, tag)
	if err == nil {
		return nil
	}
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return fieldError(field, CodeInvalid, "%s is invalid", field)
	}
	return fieldErrorFrom(field, failures[0])
}

func fieldErrorFrom(field string, failure validator.FieldError) *FieldError {
	code, ok := tagCodes[failure.Tag()]
	if !ok {
		code = CodeInvalid
	}
	switch failure.Tag() {
	case TagTrimmedRequired:
		return fieldError(field, code, "%s is required", field)
	case TagTrimmedMin:
		return fieldError(field, code, "%s must be at least %s characters", field, failure.Param())
	case TagTrimmedMax:
		return fieldError(field, code, "%s must be at most %s characters", field, failure.Param())
	case Narrative.Name:
		return fieldError(field, code, "%s contains characters outside the %s set", field, failure.Tag())
	case "number":
		return fieldError(field, code, "%s must be a whole number", field)
	case "gte":
		return fieldError(field, code, "%s must be %s or later", field, failure.Param())
	case "lte":
		return fieldError(field, code, "%s must be %s or earlier", field, failure.Param())
	case TagIncidentStatus, TagSeverityLevel, TagIncidentType, TagFollowUpFrequency:
		return fieldError(field, code, "%s %q is not supported", field, strings.TrimSpace(fmt.Sprint(failure.Value())))
	default:
		return fieldError(field, code, "%s is invalid", field)
	}
}

func upper(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
