package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

// IncidentType classifies the nature of an incident.
type IncidentType string

const (
	IncidentTypeAccident  IncidentType = "ACCIDENTE"
	IncidentTypeConflict  IncidentType = "CONFLICTO"
	IncidentTypeBehavior  IncidentType = "COMPORTAMIENTO"
	IncidentTypeEmotional IncidentType = "EMOCIONAL"
	IncidentTypeHealth    IncidentType = "SALUD"
)

// IncidentTypes lists every supported incident type.
var IncidentTypes = []IncidentType{IncidentTypeAccident, IncidentTypeConflict, IncidentTypeBehavior, IncidentTypeEmotional, IncidentTypeHealth}

// IsValid reports whether t is a known incident type.
func (t IncidentType) IsValid() bool {
	switch t {
	case IncidentTypeAccident, IncidentTypeConflict, IncidentTypeBehavior, IncidentTypeEmotional, IncidentTypeHealth:
		return true
	default:
		return false
	}
}

// SeverityLevel grades how serious an incident is.
type SeverityLevel string

const (
	SeverityMild     SeverityLevel = "LEVE"
	SeverityModerate SeverityLevel = "MODERADO"
	SeveritySevere   SeverityLevel = "GRAVE"
)

// SeverityLevels lists every supported severity.
var SeverityLevels = []SeverityLevel{SeverityMild, SeverityModerate, SeveritySevere}

// IsValid reports whether s is a known severity.
func (s SeverityLevel) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// IncidentStatus captures the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "OPEN"
	IncidentStatusResolved IncidentStatus = "RESOLVED"
	IncidentStatusClosed   IncidentStatus = "CLOSED"
)

// IncidentStatuses lists the lifecycle states in forward order.
var IncidentStatuses = []IncidentStatus{IncidentStatusOpen, IncidentStatusResolved, IncidentStatusClosed}

// IsValid reports whether s is a known status.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusResolved, IncidentStatusClosed:
		return true
	default:
		return false
	}
}

// FollowUpFrequency controls how often a follow-up reminder is raised.
type FollowUpFrequency string

const (
	FollowUpDaily    FollowUpFrequency = "DIARIO"
	FollowUpWeekly   FollowUpFrequency = "SEMANAL"
	FollowUpBiweekly FollowUpFrequency = "QUINCENAL"
	FollowUpMonthly  FollowUpFrequency = "MENSUAL"
)

// IntervalDays returns the reminder period in days, or 0 for unknown values.
func (f FollowUpFrequency) IntervalDays() int {
	switch f {
	case FollowUpDaily:
		return 1
	case FollowUpWeekly:
		return 7
	case FollowUpBiweekly:
		return 14
	case FollowUpMonthly:
		return 30
	default:
		return 0
	}
}

// IsValid reports whether f is a known frequency.
func (f FollowUpFrequency) IsValid() bool {
	return f.IntervalDays() > 0
}

// Incident is a disciplinary, behavioural or health record about one student.
type Incident struct {
	ID                    string             `db:"id" json:"id"`
	StudentID             string             `db:"student_id" json:"studentId"`
	StudentName           *string            `db:"student_name" json:"studentName,omitempty"`
	ClassroomID           *string            `db:"classroom_id" json:"classroomId,omitempty"`
	InstitutionID         *string            `db:"institution_id" json:"institutionId,omitempty"`
	IncidentDate          temporal.Date      `db:"incident_date" json:"incidentDate"`
	IncidentTime          temporal.TimeOfDay `db:"incident_time" json:"incidentTime"`
	AcademicYear          int                `db:"academic_year" json:"academicYear"`
	ReportedAt            temporal.Instant   `db:"reported_at" json:"reportedAt"`
	IncidentType          IncidentType       `db:"incident_type" json:"incidentType"`
	SeverityLevel         SeverityLevel      `db:"severity_level" json:"severityLevel"`
	Description           string             `db:"description" json:"description"`
	Location              string             `db:"location" json:"location"`
	Witnesses             *string            `db:"witnesses" json:"witnesses,omitempty"`
	ImmediateAction       string             `db:"immediate_action" json:"immediateAction"`
	OtherStudentsInvolved pq.StringArray     `db:"other_students_involved" json:"otherStudentsInvolved"`
	FollowUpRequired      bool               `db:"follow_up_required" json:"followUpRequired"`
	FollowUpFrequency     *FollowUpFrequency `db:"follow_up_frequency" json:"followUpFrequency,omitempty"`
	ParentsNotified       *bool              `db:"parents_notified" json:"parentsNotified,omitempty"`
	NotificationDate      *temporal.Instant  `db:"notification_date" json:"notificationDate,omitempty"`
	Status                IncidentStatus     `db:"status" json:"status"`
	ResolvedBy            *string            `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt            *temporal.Instant  `db:"resolved_at" json:"resolvedAt,omitempty"`
	ReportedBy            string             `db:"reported_by" json:"reportedBy"`
	CreatedAt             time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updatedAt"`
}

// IncidentFilter constrains incident listing queries.
type IncidentFilter struct {
	StudentID       string
	Statuses        []IncidentStatus
	SeverityLevel   SeverityLevel
	IncidentType    IncidentType
	AcademicYear    int
	DateFrom        *temporal.Date
	DateTo          *temporal.Date
	FollowUpOnly    bool
	ExcludeStatuses []IncidentStatus
	Page            int
	PageSize        int
}

// IncidentSummary aggregates a student's incidents per status and severity.
type IncidentSummary struct {
	StudentID      string                 `json:"studentId"`
	Total          int                    `json:"total"`
	ByStatus       map[IncidentStatus]int `json:"byStatus"`
	BySeverity     map[SeverityLevel]int  `json:"bySeverity"`
	LastIncidentAt *temporal.Date         `json:"lastIncidentAt,omitempty"`
}

// IncidentCount is a grouped counter row used by summaries.
type IncidentCount struct {
	Status        IncidentStatus `db:"status"`
	SeverityLevel SeverityLevel  `db:"severity_level"`
	Total         int            `db:"total"`
}
