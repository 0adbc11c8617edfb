package models

// StudentRef is the slice of the student directory the incident service needs:
// the display name and the classroom of the active enrollment.
type StudentRef struct {
	ID               string  `db:"id" json:"id"`
	FullName         string  `db:"full_name" json:"fullName"`
	Active           bool    `db:"active" json:"active"`
	CurrentClassID   *string `db:"current_class_id" json:"currentClassId,omitempty"`
	CurrentClassName *string `db:"current_class_name" json:"currentClassName,omitempty"`
}

// EnrollmentStatusActive marks the enrollment that places a student in a classroom.
const EnrollmentStatusActive = "ACTIVE"
