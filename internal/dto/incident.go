package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

// FormText is a form value that may arrive as a JSON string or a JSON number.
type FormText string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FormText) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FormText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("form value must be a string or a number: %w", err)
	}
	*f = FormText(n.String())
	return nil
}

// IncidentForm carries raw field values exactly as the create/edit form holds them.
type IncidentForm struct {
	StudentID             string   `json:"studentId"`
	StudentName           string   `json:"studentName"`
	IncidentDate          string   `json:"incidentDate"`
	IncidentTime          string   `json:"incidentTime"`
	AcademicYear          FormText `json:"academicYear"`
	IncidentType          string   `json:"incidentType"`
	SeverityLevel         string   `json:"severityLevel"`
	Description           string   `json:"description"`
	Location              string   `json:"location"`
	Witnesses             string   `json:"witnesses"`
	ImmediateAction       string   `json:"immediateAction"`
	OtherStudentsInvolved []string `json:"otherStudentsInvolved"`
	FollowUpRequired      bool     `json:"followUpRequired"`
	FollowUpFrequency     string   `json:"followUpFrequency"`
	ParentsNotified       *bool    `json:"parentsNotified"`
	NotificationDate      string   `json:"notificationDate"`
	Status                string   `json:"status"`
	ResolvedBy            string   `json:"resolvedBy"`
	ReportedBy            string   `json:"reportedBy"`
}

// CreateIncidentRequest wraps the form with the caller's confirmation decision.
type CreateIncidentRequest struct {
	IncidentForm
	Confirmed bool `json:"confirmed"`
}

// UpdateIncidentRequest wraps the edit form with the caller's confirmation decision.
type UpdateIncidentRequest struct {
	IncidentForm
	Confirmed bool `json:"confirmed"`
}

// CreateIncidentPayload is the validated body persisted for a new incident.
type CreateIncidentPayload struct {
	StudentID             string                    `json:"studentId"`
	StudentName           *string                   `json:"studentName,omitempty"`
	IncidentDate          temporal.Date             `json:"incidentDate"`
	IncidentTime          temporal.TimeOfDay        `json:"incidentTime"`
	AcademicYear          int                       `json:"academicYear"`
	IncidentType          models.IncidentType       `json:"incidentType"`
	SeverityLevel         models.SeverityLevel      `json:"severityLevel"`
	Description           string                    `json:"description"`
	Location              string                    `json:"location"`
	Witnesses             *string                   `json:"witnesses,omitempty"`
	ImmediateAction       string                    `json:"immediateAction"`
	OtherStudentsInvolved []string                  `json:"otherStudentsInvolved"`
	FollowUpRequired      bool                      `json:"followUpRequired"`
	FollowUpFrequency     *models.FollowUpFrequency `json:"followUpFrequency,omitempty"`
	ParentsNotified       *bool                     `json:"parentsNotified,omitempty"`
	NotificationDate      *temporal.Instant         `json:"notificationDate,omitempty"`
	Status                models.IncidentStatus     `json:"status"`
	ReportedBy            string                    `json:"reportedBy"`

	// ConfirmationRequired is set for GRAVE incidents; it never goes on the wire.
	ConfirmationRequired bool `json:"-"`
}

// UpdateIncidentPayload is the validated body persisted for an incident edit.
// Optional values left out of the body are cleared by the store.
type UpdateIncidentPayload struct {
	Description           string                    `json:"description"`
	Location              string                    `json:"location"`
	Witnesses             *string                   `json:"witnesses,omitempty"`
	ImmediateAction       string                    `json:"immediateAction"`
	OtherStudentsInvolved []string                  `json:"otherStudentsInvolved"`
	FollowUpRequired      bool                      `json:"followUpRequired"`
	FollowUpFrequency     *models.FollowUpFrequency `json:"followUpFrequency,omitempty"`
	ParentsNotified       *bool                     `json:"parentsNotified,omitempty"`
	NotificationDate      *temporal.Instant         `json:"notificationDate,omitempty"`
	Status                models.IncidentStatus     `json:"status"`
	ResolvedBy            *string                   `json:"resolvedBy,omitempty"`
	ResolvedAt            *temporal.Instant         `json:"resolvedAt,omitempty"`

	ConfirmationRequired bool                  `json:"-"`
	PreviousStatus       models.IncidentStatus `json:"-"`
}

// StatusChanged reports whether the payload moves the record to a new state.
func (p UpdateIncidentPayload) StatusChanged() bool {
	return p.PreviousStatus != "" && p.PreviousStatus != p.Status
}

// IncidentView decorates a record with display strings and lifecycle affordances.
type IncidentView struct {
	models.Incident
	IncidentDateDisplay string                  `json:"incidentDateDisplay"`
	ReportedAtDisplay   string                  `json:"reportedAtDisplay"`
	ResolvedAtDisplay   string                  `json:"resolvedAtDisplay,omitempty"`
	MutableFields       []string                `json:"mutableFields"`
	AllowedTransitions  []models.IncidentStatus `json:"allowedTransitions"`
}

// IncidentQuery mirrors supported listing filters.
type IncidentQuery struct {
	StudentID     string   `json:"studentId"`
	Statuses      []string `json:"statuses" validate:"omitempty,dive,incident_status"`
	SeverityLevel string   `json:"severityLevel" validate:"omitempty,severity_level"`
	IncidentType  string   `json:"incidentType" validate:"omitempty,incident_type"`
	AcademicYear  int      `json:"academicYear" validate:"omitempty,gte=2000"`
	DateFrom      string   `json:"dateFrom"`
	DateTo        string   `json:"dateTo"`
	FollowUpOnly  bool     `json:"followUpOnly"`
	Page          int      `json:"page" validate:"omitempty,gte=1"`
	PageSize      int      `json:"pageSize" validate:"omitempty,gte=1,lte=200"`
}

// ValidationReport is returned by the dry-run validation endpoints.
type ValidationReport struct {
	Valid                bool              `json:"valid"`
	FieldErrors          map[string]string `json:"fieldErrors,omitempty"`
	TransitionError      string            `json:"transitionError,omitempty"`
	ImmutableFields      []string          `json:"immutableFields,omitempty"`
	ConfirmationRequired bool              `json:"confirmationRequired"`
}
