package incident

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-behavior-api/internal/models"
)

// resolveFollowUp applies the followUpRequired/followUpFrequency pairing. A frequency
// submitted without followUpRequired is dropped.
func resolveFollowUp(v *validator.Validate, required bool, raw string) (*models.FollowUpFrequency, *FieldError) {
	if !required {
		return nil, nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fieldError(FieldFollowUpFrequency, CodeRequired, "%s is required when follow-up is requested", FieldFollowUpFrequency)
	}
	if fe := checkVar(v, FieldFollowUpFrequency, raw, TagFollowUpFrequency); fe != nil {
		return nil, fe
	}
	frequency := models.FollowUpFrequency(upper(raw))
	return &frequency, nil
}

// resolveResolver applies the status/resolvedBy pairing. When the record is already
// resolved, stored stands in for a blank submission.
func resolveResolver(target models.IncidentStatus, raw string, stored *string) (*string, *FieldError) {
	if target != models.IncidentStatusResolved && target != models.IncidentStatusClosed {
		return nil, nil
	}
	if value := optionalString(raw); value != nil {
		return value, nil
	}
	if stored != nil && strings.TrimSpace(*stored) != "" {
		value := strings.TrimSpace(*stored)
		return &value, nil
	}
	return nil, fieldError(FieldResolvedBy, CodeRequired, "%s is required when status is %s", FieldResolvedBy, target)
}

// cleanInvolved trims entries and drops blanks, the primary student and repeats.
func cleanInvolved(studentID string, entries []string) []string {
	primary := strings.TrimSpace(studentID)
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry)
		if id == "" || id == primary {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RequiresConfirmation reports whether writes of this severity need an explicit confirmation.
func RequiresConfirmation(severity models.SeverityLevel) bool {
	return severity == models.SeveritySevere
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
