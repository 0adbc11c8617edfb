package incident

import "github.com/noah-isme/sma-behavior-api/internal/models"

var transitions = map[models.IncidentStatus][]models.IncidentStatus{
	models.IncidentStatusOpen:     {models.IncidentStatusOpen, models.IncidentStatusResolved},
	models.IncidentStatusResolved: {models.IncidentStatusResolved, models.IncidentStatusClosed},
	models.IncidentStatusClosed:   {},
}

// CanTransition returns an *IllegalTransitionError unless current may move to requested.
// Staying in OPEN or RESOLVED is allowed; CLOSED accepts nothing, not even itself.
func CanTransition(current, requested models.IncidentStatus) error {
	for _, next := range transitions[current] {
		if next == requested {
			return nil
		}
	}
	return &IllegalTransitionError{Current: current, Requested: requested}
}

// AllowedTransitions lists the statuses current may move to, itself included.
func AllowedTransitions(current models.IncidentStatus) []models.IncidentStatus {
	allowed := transitions[current]
	out := make([]models.IncidentStatus, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal reports whether an incident in status can no longer change.
func IsTerminal(status models.IncidentStatus) bool {
	return len(transitions[status]) == 0
}

// MutableFields returns the fields an update may change for an incident in status.
func MutableFields(status models.IncidentStatus) FieldSet {
	if IsTerminal(status) {
		return FieldSet{}
	}
	return FieldSet(editableFields.Names())
}

// WriteOnceFields returns the fields fixed at creation.
func WriteOnceFields() FieldSet {
	return FieldSet(writeOnceFields.Names())
}
