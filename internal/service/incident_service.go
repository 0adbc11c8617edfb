package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-behavior-api/internal/dto"
	"github.com/noah-isme/sma-behavior-api/internal/incident"
	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/internal/repository"
	appErrors "github.com/noah-isme/sma-behavior-api/pkg/errors"
	"github.com/noah-isme/sma-behavior-api/pkg/export"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

const (
	incidentViewKeyPrefix    = "incidents:view:"
	incidentListKeyPrefix    = "incidents:list:"
	incidentSummaryKeyPrefix = "incidents:summary:"

	defaultIncidentPageSize = 20
	exportPageSize          = 200
	maxExportRows           = 5000
)

type incidentStore interface {
	Create(ctx context.Context, record *models.Incident) error
	FindByID(ctx context.Context, id string) (*models.Incident, error)
	UpdateMutable(ctx context.Context, record *models.Incident, expected models.IncidentStatus) error
	List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, int, error)
	Summary(ctx context.Context, studentID string) (*models.IncidentSummary, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.StudentRef, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type graveNotifier interface {
	GraveIncident(record models.Incident) error
}

// Actor identifies who performs an incident write.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IPAddress string
	UserAgent string
}

// IncidentServiceConfig carries deployment settings the service stamps on records.
type IncidentServiceConfig struct {
	InstitutionID string
	Location      *time.Location
	CacheTTL      time.Duration
}

// IncidentServiceOption customises the incident service.
type IncidentServiceOption func(*IncidentService)

// WithIncidentCache enables read-through caching of views, pages and summaries.
func WithIncidentCache(cache *CacheService) IncidentServiceOption {
	return func(s *IncidentService) {
		s.cache = cache
	}
}

// WithIncidentMetrics wires lifecycle counters.
func WithIncidentMetrics(metrics *MetricsService) IncidentServiceOption {
	return func(s *IncidentService) {
		s.metrics = metrics
	}
}

// WithIncidentAudit records every write in the audit trail.
func WithIncidentAudit(audit auditLogger) IncidentServiceOption {
	return func(s *IncidentService) {
		s.audit = audit
	}
}

// WithGraveNotifier queues a notification whenever a GRAVE incident is recorded.
func WithGraveNotifier(notifier graveNotifier) IncidentServiceOption {
	return func(s *IncidentService) {
		s.notifier = notifier
	}
}

// IncidentService records and edits behaviour incidents.
type IncidentService struct {
	store     incidentStore
	students  studentDirectory
	assembler *incident.Assembler
	validator *validator.Validate
	cfg       IncidentServiceConfig
	logger    *zap.Logger

	audit    auditLogger
	cache    *CacheService
	metrics  *MetricsService
	notifier graveNotifier
}

// NewIncidentService constructs the service.
func NewIncidentService(store incidentStore, students studentDirectory, assembler *incident.Assembler, validate *validator.Validate, cfg IncidentServiceConfig, logger *zap.Logger, opts ...IncidentServiceOption) *IncidentService {
	if validate == nil {
		validate = incident.NewValidator()
	}
	if assembler == nil {
		assembler = incident.NewAssembler(incident.WithLocation(cfg.Location), incident.WithValidator(validate))
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &IncidentService{
		store:     store,
		students:  students,
		assembler: assembler,
		validator: validate,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	incident.RegisterValidations(svc.validator)
	return svc
}

// Create validates and stores a new incident. GRAVE incidents need req.Confirmed.
func (s *IncidentService) Create(ctx context.Context, req dto.CreateIncidentRequest, actor Actor) (*dto.IncidentView, error) {
	payload, err := s.assembler.PrepareCreate(req.IncidentForm)
	if err != nil {
		return nil, s.reject(err)
	}
	if payload.ConfirmationRequired && !req.Confirmed {
		s.metrics.IncidentRejected("confirmation")
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, nil, map[string]interface{}{
			"severityLevel": payload.SeverityLevel,
		})
	}

	student, err := s.students.FindByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.IncidentRejected("validation")
			return nil, studentFieldError("student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if !student.Active {
		s.metrics.IncidentRejected("validation")
		return nil, studentFieldError("student has no active enrollment")
	}

	record := newIncidentRecord(payload, student, s.cfg.InstitutionID)
	if err := s.store.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create incident")
	}

	s.recordAudit(ctx, actor, models.AuditActionIncidentCreate, record.ID, nil, record)
	s.metrics.IncidentCreated(record.IncidentType, record.SeverityLevel)
	s.invalidate(ctx, record)
	if record.SeverityLevel == models.SeveritySevere && s.notifier != nil {
		if err := s.notifier.GraveIncident(*record); err != nil {
			s.logger.Warn("failed to queue grave incident notification", zap.String("incident_id", record.ID), zap.Error(err))
		}
	}

	s.logger.Info("incident created",
		zap.String("incident_id", record.ID),
		zap.String("student_id", record.StudentID),
		zap.String("severity", string(record.SeverityLevel)),
	)
	return s.view(*record), nil
}

// Update applies an edit to the mutable fields of an incident and moves it along its lifecycle.
func (s *IncidentService) Update(ctx context.Context, id string, req dto.UpdateIncidentRequest, actor Actor) (*dto.IncidentView, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := s.assembler.PrepareUpdate(*current, req.IncidentForm)
	if err != nil {
		return nil, s.reject(err)
	}
	if payload.StatusChanged() && payload.Status == models.IncidentStatusClosed && !actor.Role.CanClose() {
		s.metrics.IncidentRejected("forbidden")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can close incidents")
	}
	if payload.ConfirmationRequired && payload.StatusChanged() && !req.Confirmed {
		s.metrics.IncidentRejected("confirmation")
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, nil, map[string]interface{}{
			"severityLevel": current.SeverityLevel,
			"status":        payload.Status,
		})
	}

	updated := *current
	applyUpdate(&updated, payload)
	if err := s.store.UpdateMutable(ctx, &updated, current.Status); err != nil {
		if errors.Is(err, repository.ErrStaleIncident) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "incident was modified by another request, reload and retry")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "incident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update incident")
	}

	action := models.AuditActionIncidentUpdate
	if payload.StatusChanged() {
		action = models.AuditActionIncidentTransition
		s.metrics.IncidentTransitioned(payload.PreviousStatus, payload.Status)
	}
	s.recordAudit(ctx, actor, action, updated.ID, current, &updated)
	s.invalidate(ctx, &updated)
	return s.view(updated), nil
}

// Get returns the incident with display strings and lifecycle affordances.
func (s *IncidentService) Get(ctx context.Context, id string) (*dto.IncidentView, error) {
	key := incidentViewKeyPrefix + id
	var cached dto.IncidentView
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(*record)
	s.cache.Set(ctx, key, view, s.cfg.CacheTTL)
	return view, nil
}

// IncidentPage is one page of list results.
type IncidentPage struct {
	Items      []dto.IncidentView `json:"items"`
	Pagination models.Pagination  `json:"pagination"`
}

// List returns incidents matching query, newest first.
func (s *IncidentService) List(ctx context.Context, query dto.IncidentQuery) (*IncidentPage, error) {
	filter, err := s.filterFor(query)
	if err != nil {
		return nil, err
	}

	key := incidentListKeyPrefix + hashFilter(filter)
	var cached IncidentPage
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incidents")
	}
	page := &IncidentPage{
		Items:      make([]dto.IncidentView, 0, len(records)),
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	for _, record := range records {
		page.Items = append(page.Items, *s.view(record))
	}
	s.cache.Set(ctx, key, page, s.cfg.CacheTTL)
	return page, nil
}

// Validate runs the create rules, or the update rules against incident id when id is set,
// without storing anything.
func (s *IncidentService) Validate(ctx context.Context, id string, form dto.IncidentForm) (*dto.ValidationReport, error) {
	report := &dto.ValidationReport{}
	var err error
	if id == "" {
		var payload *dto.CreateIncidentPayload
		payload, err = s.assembler.PrepareCreate(form)
		if payload != nil {
			report.ConfirmationRequired = payload.ConfirmationRequired
		} else {
			report.ConfirmationRequired = incident.RequiresConfirmation(models.SeverityLevel(strings.ToUpper(strings.TrimSpace(form.SeverityLevel))))
		}
	} else {
		current, loadErr := s.load(ctx, id)
		if loadErr != nil {
			return nil, loadErr
		}
		var payload *dto.UpdateIncidentPayload
		payload, err = s.assembler.PrepareUpdate(*current, form)
		report.ConfirmationRequired = incident.RequiresConfirmation(current.SeverityLevel) && payload != nil && payload.StatusChanged()
	}

	var fields incident.FieldErrors
	if errors.As(err, &fields) {
		report.FieldErrors = fields.Map()
	}
	var transition *incident.IllegalTransitionError
	if errors.As(err, &transition) {
		report.TransitionError = transition.Error()
	}
	var immutable *incident.ImmutableFieldError
	if errors.As(err, &immutable) {
		report.ImmutableFields = immutable.Fields
	}
	report.Valid = err == nil
	return report, nil
}

// ExportFile is a rendered incident listing ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

var exportHeaders = []string{"Fecha", "Estudiante", "Tipo", "Gravedad", "Estado", "Lugar", "Descripción", "Reportado por", "Resuelto"}

// Export renders every incident matching query as CSV or PDF.
func (s *IncidentService) Export(ctx context.Context, query dto.IncidentQuery, format export.Format) (*ExportFile, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	filter, err := s.filterFor(query)
	if err != nil {
		return nil, err
	}

	filter.Page, filter.PageSize = 1, exportPageSize
	dataset := export.Dataset{Title: "Registro de incidentes", Headers: exportHeaders}
	for len(dataset.Rows) < maxExportRows {
		records, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incidents for export")
		}
		for _, record := range records {
			dataset.Rows = append(dataset.Rows, s.exportRow(record))
		}
		if len(records) == 0 || filter.Page*filter.PageSize >= total {
			break
		}
		filter.Page++
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	stamp := time.Now().In(s.cfg.Location).Format("20060102-1504")
	return &ExportFile{
		Filename:    fmt.Sprintf("incidents-%s.%s", stamp, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// StudentSummary aggregates a student's incidents per status and severity.
func (s *IncidentService) StudentSummary(ctx context.Context, studentID string) (*models.IncidentSummary, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	key := incidentSummaryKeyPrefix + studentID
	var cached models.IncidentSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	summary, err := s.store.Summary(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise incidents")
	}
	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, nil
}

func (s *IncidentService) load(ctx context.Context, id string) (*models.Incident, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "incident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load incident")
	}
	return record, nil
}

func (s *IncidentService) filterFor(query dto.IncidentQuery) (models.IncidentFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.IncidentFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query")
	}
	filter := models.IncidentFilter{
		StudentID:     strings.TrimSpace(query.StudentID),
		SeverityLevel: models.SeverityLevel(strings.ToUpper(query.SeverityLevel)),
		IncidentType:  models.IncidentType(strings.ToUpper(query.IncidentType)),
		AcademicYear:  query.AcademicYear,
		FollowUpOnly:  query.FollowUpOnly,
		Page:          query.Page,
		PageSize:      query.PageSize,
	}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, models.IncidentStatus(strings.ToUpper(status)))
	}
	bounds := []struct {
		name   string
		raw    string
		target **temporal.Date
	}{
		{"dateFrom", query.DateFrom, &filter.DateFrom},
		{"dateTo", query.DateTo, &filter.DateTo},
	}
	for _, bound := range bounds {
		if strings.TrimSpace(bound.raw) == "" {
			continue
		}
		date, err := temporal.NormalizeDate(bound.raw)
		if err != nil {
			return models.IncidentFilter{}, appErrors.WithDetails(appErrors.ErrValidation, err, map[string]interface{}{
				"fields": map[string]string{bound.name: "expected YYYY-MM-DD"},
			})
		}
		*bound.target = &date
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return models.IncidentFilter{}, appErrors.Clone(appErrors.ErrValidation, "dateTo must not be before dateFrom")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultIncidentPageSize
	}
	return filter, nil
}

func (s *IncidentService) view(record models.Incident) *dto.IncidentView {
	if record.OtherStudentsInvolved == nil {
		record.OtherStudentsInvolved = []string{}
	}
	view := &dto.IncidentView{
		Incident:            record,
		IncidentDateDisplay: temporal.DisplayDateTime(record.IncidentDate, record.IncidentTime),
		ReportedAtDisplay:   record.ReportedAt.DisplayIn(s.cfg.Location),
		MutableFields:       incident.MutableFields(record.Status).Names(),
		AllowedTransitions:  incident.AllowedTransitions(record.Status),
	}
	if view.MutableFields == nil {
		view.MutableFields = []string{}
	}
	if record.ResolvedAt != nil {
		view.ResolvedAtDisplay = record.ResolvedAt.DisplayIn(s.cfg.Location)
	}
	return view
}

func (s *IncidentService) exportRow(record models.Incident) map[string]string {
	student := record.StudentID
	if record.StudentName != nil && *record.StudentName != "" {
		student = *record.StudentName
	}
	resolved := ""
	if record.ResolvedAt != nil {
		resolved = record.ResolvedAt.DisplayIn(s.cfg.Location)
	}
	return map[string]string{
		"Fecha":         temporal.DisplayDateTime(record.IncidentDate, record.IncidentTime),
		"Estudiante":    student,
		"Tipo":          string(record.IncidentType),
		"Gravedad":      string(record.SeverityLevel),
		"Estado":        string(record.Status),
		"Lugar":         record.Location,
		"Descripción":   record.Description,
		"Reportado por": record.ReportedBy,
		"Resuelto":      resolved,
	}
}

// reject converts an assembler failure into the HTTP error shape and counts it.
func (s *IncidentService) reject(err error) error {
	mapped := rejectionError(err)
	reason := "validation"
	switch mapped.Code {
	case appErrors.ErrIllegalTransition.Code:
		reason = "transition"
	case appErrors.ErrImmutableField.Code:
		reason = "immutable"
	}
	s.metrics.IncidentRejected(reason)
	return mapped
}

func rejectionError(err error) *appErrors.Error {
	var fields incident.FieldErrors
	var transition *incident.IllegalTransitionError
	var immutable *incident.ImmutableFieldError
	hasFields := errors.As(err, &fields)
	hasTransition := errors.As(err, &transition)
	hasImmutable := errors.As(err, &immutable)

	parts := 0
	for _, has := range []bool{hasFields, hasTransition, hasImmutable} {
		if has {
			parts++
		}
	}
	switch {
	case parts == 0:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate incident")
	case parts == 1 && hasTransition:
		return appErrors.WithDetails(appErrors.ErrIllegalTransition, err, map[string]interface{}{
			"current":   transition.Current,
			"requested": transition.Requested,
		})
	case parts == 1 && hasImmutable:
		return appErrors.WithDetails(appErrors.ErrImmutableField, err, map[string]interface{}{
			"fields": immutable.Fields,
		})
	}

	details := map[string]interface{}{}
	if hasFields {
		details["fields"] = fields.Map()
	}
	if hasTransition {
		details["transition"] = transition
	}
	if hasImmutable {
		details["immutableFields"] = immutable.Fields
	}
	return appErrors.WithDetails(appErrors.ErrValidation, err, details)
}

func studentFieldError(message string) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrValidation, nil, map[string]interface{}{
		"fields": map[string]string{incident.FieldStudentID: message},
	})
}

func (s *IncidentService) recordAudit(ctx context.Context, actor Actor, action, id string, before, after *models.Incident) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceIncident,
		ResourceID: &id,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write incident audit log", zap.String("incident_id", id), zap.Error(err))
	}
}

func (s *IncidentService) invalidate(ctx context.Context, record *models.Incident) {
	s.cache.Invalidate(ctx,
		[]string{incidentViewKeyPrefix + record.ID, incidentSummaryKeyPrefix + record.StudentID},
		incidentListKeyPrefix+"*",
	)
}

func newIncidentRecord(payload *dto.CreateIncidentPayload, student *models.StudentRef, institutionID string) *models.Incident {
	record := &models.Incident{
		StudentID:             payload.StudentID,
		StudentName:           payload.StudentName,
		ClassroomID:           student.CurrentClassID,
		IncidentDate:          payload.IncidentDate,
		IncidentTime:          payload.IncidentTime,
		AcademicYear:          payload.AcademicYear,
		IncidentType:          payload.IncidentType,
		SeverityLevel:         payload.SeverityLevel,
		Description:           payload.Description,
		Location:              payload.Location,
		Witnesses:             payload.Witnesses,
		ImmediateAction:       payload.ImmediateAction,
		OtherStudentsInvolved: payload.OtherStudentsInvolved,
		FollowUpRequired:      payload.FollowUpRequired,
		FollowUpFrequency:     payload.FollowUpFrequency,
		ParentsNotified:       payload.ParentsNotified,
		NotificationDate:      payload.NotificationDate,
		Status:                payload.Status,
		ReportedBy:            payload.ReportedBy,
	}
	if record.StudentName == nil && student.FullName != "" {
		name := student.FullName
		record.StudentName = &name
	}
	if institutionID != "" {
		id := institutionID
		record.InstitutionID = &id
	}
	return record
}

func applyUpdate(record *models.Incident, payload *dto.UpdateIncidentPayload) {
	record.Description = payload.Description
	record.Location = payload.Location
	record.Witnesses = payload.Witnesses
	record.ImmediateAction = payload.ImmediateAction
	record.OtherStudentsInvolved = payload.OtherStudentsInvolved
	record.FollowUpRequired = payload.FollowUpRequired
	record.FollowUpFrequency = payload.FollowUpFrequency
	record.ParentsNotified = payload.ParentsNotified
	record.NotificationDate = payload.NotificationDate
	record.Status = payload.Status
	record.ResolvedBy = payload.ResolvedBy
	record.ResolvedAt = payload.ResolvedAt
}

func hashFilter(filter models.IncidentFilter) string {
	raw, err := json.Marshal(filter)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", filter))
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
