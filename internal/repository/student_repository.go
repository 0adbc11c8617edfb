package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-behavior-api/internal/models"
)

// StudentRepository reads the student directory shared with the rest of the platform.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student together with the classroom of the active enrollment.
// It returns sql.ErrNoRows when the student does not exist.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentRef, error) {
	const query = `SELECT s.id, s.full_name, s.active, e.class_id AS current_class_id, c.name AS current_class_name
        FROM students s
        LEFT JOIN enrollments e ON e.student_id = s.id AND e.status = $2
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE s.id = $1
        ORDER BY e.joined_at DESC NULLS LAST
        LIMIT 1`
	var student models.StudentRef
	if err := r.db.GetContext(ctx, &student, query, id, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &student, nil
}
