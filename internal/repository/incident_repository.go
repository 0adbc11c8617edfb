package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

// ErrStaleIncident is returned when an update targets a status that changed underneath it.
var ErrStaleIncident = errors.New("incident changed since it was read")

const incidentColumns = `id, student_id, student_name, classroom_id, institution_id, incident_date, incident_time,
        academic_year, reported_at, incident_type, severity_level, description, location, witnesses, immediate_action,
        other_students_involved, follow_up_required, follow_up_frequency, parents_notified, notification_date,
        status, resolved_by, resolved_at, reported_by, created_at, updated_at`

// IncidentRepository persists behaviour incidents. Rows are never deleted.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository constructs an IncidentRepository.
func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create inserts a new incident, assigning its id and bookkeeping timestamps.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = temporal.InstantOf(now)
	}
	incident.CreatedAt = now
	incident.UpdatedAt = now
	if incident.OtherStudentsInvolved == nil {
		incident.OtherStudentsInvolved = pq.StringArray{}
	}

	const query = `INSERT INTO incidents (` + incidentColumns + `)
        VALUES (:id, :student_id, :student_name, :classroom_id, :institution_id, :incident_date, :incident_time,
        :academic_year, :reported_at, :incident_type, :severity_level, :description, :location, :witnesses, :immediate_action,
        :other_students_involved, :follow_up_required, :follow_up_frequency, :parents_notified, :notification_date,
        :status, :resolved_by, :resolved_at, :reported_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// FindByID fetches an incident. It returns sql.ErrNoRows when the id is unknown.
func (r *IncidentRepository) FindByID(ctx context.Context, id string) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	var incident models.Incident
	if err := r.db.GetContext(ctx, &incident, query, id); err != nil {
		return nil, err
	}
	return &incident, nil
}

// UpdateMutable writes the mutable columns of incident, provided the stored status still
// equals expected. Write-once columns are never touched.
func (r *IncidentRepository) UpdateMutable(ctx context.Context, incident *models.Incident, expected models.IncidentStatus) error {
	incident.UpdatedAt = time.Now().UTC()
	if incident.OtherStudentsInvolved == nil {
		incident.OtherStudentsInvolved = pq.StringArray{}
	}
	const query = `UPDATE incidents SET description = $1, location = $2, witnesses = $3, immediate_action = $4,
        other_students_involved = $5, follow_up_required = $6, follow_up_frequency = $7, parents_notified = $8,
        notification_date = $9, status = $10, resolved_by = $11, resolved_at = $12, updated_at = $13
        WHERE id = $14 AND status = $15`
	result, err := r.db.ExecContext(ctx, query,
		incident.Description,
		incident.Location,
		incident.Witnesses,
		incident.ImmediateAction,
		incident.OtherStudentsInvolved,
		incident.FollowUpRequired,
		incident.FollowUpFrequency,
		incident.ParentsNotified,
		incident.NotificationDate,
		incident.Status,
		incident.ResolvedBy,
		incident.ResolvedAt,
		incident.UpdatedAt,
		incident.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update incident rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleIncident
	}
	return nil
}

// List returns incidents matching filter together with the unpaginated total.
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, int, error) {
	where, args := incidentConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE %s ORDER BY incident_date DESC, incident_time DESC, id LIMIT %d OFFSET %d`,
		incidentColumns, where, size, offset)
	var incidents []models.Incident
	if err := r.db.SelectContext(ctx, &incidents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM incidents WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}
	return incidents, total, nil
}

// ListFollowUps returns every incident still under follow-up.
func (r *IncidentRepository) ListFollowUps(ctx context.Context) ([]models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents
        WHERE follow_up_required = TRUE AND follow_up_frequency IS NOT NULL AND status <> $1
        ORDER BY incident_date`
	var incidents []models.Incident
	if err := r.db.SelectContext(ctx, &incidents, query, models.IncidentStatusClosed); err != nil {
		return nil, fmt.Errorf("list follow-up incidents: %w", err)
	}
	return incidents, nil
}

// Summary aggregates a student's incidents per status and severity.
func (r *IncidentRepository) Summary(ctx context.Context, studentID string) (*models.IncidentSummary, error) {
	const countQuery = `SELECT status, severity_level, COUNT(*) AS total FROM incidents
        WHERE student_id = $1 GROUP BY status, severity_level`
	var counts []models.IncidentCount
	if err := r.db.SelectContext(ctx, &counts, countQuery, studentID); err != nil {
		return nil, fmt.Errorf("count student incidents: %w", err)
	}

	summary := &models.IncidentSummary{
		StudentID:  studentID,
		ByStatus:   make(map[models.IncidentStatus]int, len(models.IncidentStatuses)),
		BySeverity: make(map[models.SeverityLevel]int, len(models.SeverityLevels)),
	}
	for _, status := range models.IncidentStatuses {
		summary.ByStatus[status] = 0
	}
	for _, severity := range models.SeverityLevels {
		summary.BySeverity[severity] = 0
	}
	for _, row := range counts {
		summary.Total += row.Total
		summary.ByStatus[row.Status] += row.Total
		summary.BySeverity[row.SeverityLevel] += row.Total
	}
	if summary.Total == 0 {
		return summary, nil
	}

	var last temporal.Date
	if err := r.db.GetContext(ctx, &last, `SELECT MAX(incident_date) FROM incidents WHERE student_id = $1`, studentID); err != nil {
		return nil, fmt.Errorf("last student incident: %w", err)
	}
	if !last.IsZero() {
		summary.LastIncidentAt = &last
	}
	return summary, nil
}

func incidentConditions(filter models.IncidentFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	add := func(format string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.StudentID != "" {
		add("student_id = $%d", filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", statusArray(filter.Statuses))
	}
	if len(filter.ExcludeStatuses) > 0 {
		add("status <> ALL($%d)", statusArray(filter.ExcludeStatuses))
	}
	if filter.SeverityLevel != "" {
		add("severity_level = $%d", filter.SeverityLevel)
	}
	if filter.IncidentType != "" {
		add("incident_type = $%d", filter.IncidentType)
	}
	if filter.AcademicYear > 0 {
		add("academic_year = $%d", filter.AcademicYear)
	}
	if filter.DateFrom != nil {
		add("incident_date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		add("incident_date <= $%d", *filter.DateTo)
	}
	if filter.FollowUpOnly {
		conditions = append(conditions, "follow_up_required = TRUE")
	}
	return strings.Join(conditions, " AND "), args
}

func statusArray(statuses []models.IncidentStatus) pq.StringArray {
	out := make(pq.StringArray, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}
