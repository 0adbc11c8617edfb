package incident

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

// CharacterClass is an allow-list of characters a text field may contain.
type CharacterClass struct {
	Name    string
	pattern *regexp.Regexp
}

// Allows reports whether every character of s belongs to the class.
func (c *CharacterClass) Allows(s string) bool {
	return c.pattern.MatchString(s)
}

// Narrative allows letters (including Spanish diacritics), digits, whitespace and .,;:()-
var Narrative = &CharacterClass{
	Name:    "narrative",
	pattern: regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ0-9\s.,;:()\-]*$`),
}

// Rule is the declarative contract of one free-text field.
type Rule struct {
	Field     string
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *CharacterClass
}

// Tag renders the rule as a validator tag chain. Tags run in order, so a field
// reports required, then length, then pattern, and stops at its first failure.
// Lengths count runes of the trimmed value; the pattern sees the raw value so a
// disallowed leading or trailing character still fails.
func (r Rule) Tag() string {
	var tags []string
	if r.Required {
		tags = append(tags, TagTrimmedRequired)
	}
	if r.MinLength > 0 {
		tags = append(tags, fmt.Sprintf("%s=%d", TagTrimmedMin, r.MinLength))
	}
	if r.MaxLength > 0 {
		tags = append(tags, fmt.Sprintf("%s=%d", TagTrimmedMax, r.MaxLength))
	}
	if r.Pattern != nil {
		tags = append(tags, r.Pattern.Name)
	}
	return strings.Join(tags, ",")
}

// Evaluate checks raw against the rule and returns the first failure, if any.
// A blank optional field passes.
func (r Rule) Evaluate(v *validator.Validate, raw string) *FieldError {
	if !r.Required && strings.TrimSpace(raw) == "" {
		return nil
	}
	return checkVar(v, r.Field, raw, r.Tag())
}

var textRules = []Rule{
	{Field: FieldStudentID, Required: true},
	{Field: FieldDescription, Required: true, MinLength: 5, MaxLength: 1000},
	{Field: FieldLocation, Required: true, MinLength: 5, MaxLength: 200},
	{Field: FieldWitnesses, MinLength: 5, MaxLength: 500, Pattern: Narrative},
	{Field: FieldImmediateAction, Required: true, MinLength: 5, MaxLength: 500, Pattern: Narrative},
	{Field: FieldReportedBy, Required: true},
}

// Rules returns the free-text rule table.
func Rules() []Rule {
	out := make([]Rule, len(textRules))
	copy(out, textRules)
	return out
}

// RuleFor looks up the rule of a free-text field.
func RuleFor(field string) (Rule, bool) {
	for _, rule := range textRules {
		if rule.Field == field {
			return rule, true
		}
	}
	return Rule{}, false
}

func evaluate(v *validator.Validate, field, raw string) *FieldError {
	rule, ok := RuleFor(field)
	if !ok {
		return nil
	}
	return rule.Evaluate(v, raw)
}

func checkIncidentDate(v *validator.Validate, raw string, today temporal.Date) (temporal.Date, *FieldError) {
	if fe := checkVar(v, FieldIncidentDate, raw, TagTrimmedRequired); fe != nil {
		return temporal.Date{}, fe
	}
	date, err := temporal.NormalizeDate(raw)
	if err != nil {
		return temporal.Date{}, fieldError(FieldIncidentDate, CodeInvalid, "%s must be a date in YYYY-MM-DD form", FieldIncidentDate)
	}
	if date.After(today) {
		return date, fieldError(FieldIncidentDate, CodeFutureDate, "%s cannot be later than %s", FieldIncidentDate, today)
	}
	return date, nil
}

func checkIncidentTime(v *validator.Validate, raw string) (temporal.TimeOfDay, *FieldError) {
	if fe := checkVar(v, FieldIncidentTime, raw, TagTrimmedRequired); fe != nil {
		return temporal.TimeOfDay{}, fe
	}
	clock, err := temporal.NormalizeTime(raw)
	if err != nil {
		return temporal.TimeOfDay{}, fieldError(FieldIncidentTime, CodeInvalid, "%s must be a time in HH:MM or HH:MM:SS form", FieldIncidentTime)
	}
	return clock, nil
}

func checkAcademicYear(v *validator.Validate, raw string, minYear, maxYear int) (int, *FieldError) {
	trimmed := strings.TrimSpace(raw)
	if fe := checkVar(v, FieldAcademicYear, trimmed, TagTrimmedRequired+",number"); fe != nil {
		return 0, fe
	}
	year, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fieldError(FieldAcademicYear, CodeInvalid, "%s must be a whole number", FieldAcademicYear)
	}
	if fe := checkVar(v, FieldAcademicYear, year, fmt.Sprintf("gte=%d,lte=%d", minYear, maxYear)); fe != nil {
		return year, fe
	}
	return year, nil
}

func checkIncidentType(v *validator.Validate, raw string) (models.IncidentType, *FieldError) {
	if fe := checkVar(v, FieldIncidentType, raw, TagTrimmedRequired+","+TagIncidentType); fe != nil {
		return "", fe
	}
	return models.IncidentType(upper(raw)), nil
}

func checkSeverity(v *validator.Validate, raw string) (models.SeverityLevel, *FieldError) {
	if fe := checkVar(v, FieldSeverityLevel, raw, TagTrimmedRequired+","+TagSeverityLevel); fe != nil {
		return "", fe
	}
	return models.SeverityLevel(upper(raw)), nil
}

func checkNotificationDate(raw string) (*temporal.Instant, *FieldError) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	instant, err := temporal.NormalizeTimestamp(raw)
	if err != nil {
		return nil, fieldError(FieldNotificationDate, CodeInvalid, "%s must be an ISO-8601 timestamp", FieldNotificationDate)
	}
	return &instant, nil
}

// checkStatus parses the requested status; a blank value keeps fallback.
func checkStatus(v *validator.Validate, raw string, fallback models.IncidentStatus) (models.IncidentStatus, *FieldError) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	if fe := checkVar(v, FieldStatus, raw, TagIncidentStatus); fe != nil {
		return "", fe
	}
	return models.IncidentStatus(upper(raw)), nil
}
