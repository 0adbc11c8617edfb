// Package incident holds the validation and lifecycle rules applied to behaviour
// incidents before they are written to the store. Everything here is pure: no I/O,
// no logging, no shared state.
package incident

// Form field names. They double as keys of the field error map returned to callers.
const (
	FieldStudentID             = "studentId"
	FieldStudentName           = "studentName"
	FieldIncidentDate          = "incidentDate"
	FieldIncidentTime          = "incidentTime"
	FieldAcademicYear          = "academicYear"
	FieldIncidentType          = "incidentType"
	FieldSeverityLevel         = "severityLevel"
	FieldDescription           = "description"
	FieldLocation              = "location"
	FieldWitnesses             = "witnesses"
	FieldImmediateAction       = "immediateAction"
	FieldOtherStudentsInvolved = "otherStudentsInvolved"
	FieldFollowUpRequired      = "followUpRequired"
	FieldFollowUpFrequency     = "followUpFrequency"
	FieldParentsNotified       = "parentsNotified"
	FieldNotificationDate      = "notificationDate"
	FieldStatus                = "status"
	FieldResolvedBy            = "resolvedBy"
	FieldReportedBy            = "reportedBy"
)

// FieldSet is an ordered set of field names.
type FieldSet []string

// Has reports whether field belongs to the set.
func (s FieldSet) Has(field string) bool {
	for _, f := range s {
		if f == field {
			return true
		}
	}
	return false
}

// Names returns a copy of the field names in order.
func (s FieldSet) Names() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

var (
	editableFields = FieldSet{
		FieldDescription,
		FieldLocation,
		FieldWitnesses,
		FieldOtherStudentsInvolved,
		FieldImmediateAction,
		FieldFollowUpRequired,
		FieldFollowUpFrequency,
		FieldParentsNotified,
		FieldNotificationDate,
		FieldResolvedBy,
		FieldStatus,
	}

	writeOnceFields = FieldSet{
		FieldStudentID,
		FieldIncidentDate,
		FieldIncidentTime,
		FieldAcademicYear,
		FieldIncidentType,
		FieldSeverityLevel,
		FieldReportedBy,
	}
)
