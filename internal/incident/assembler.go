package incident

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-behavior-api/internal/dto"
	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

// DefaultMinAcademicYear is the earliest academic year accepted on new incidents.
const DefaultMinAcademicYear = 2020

// Option customises an Assembler.
type Option func(*Assembler)

// WithClock overrides the time source used for "today" and resolvedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocation sets the school time zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(a *Assembler) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithMinAcademicYear overrides the lower bound of academicYear.
func WithMinAcademicYear(year int) Option {
	return func(a *Assembler) {
		if year > 0 {
			a.minAcademicYear = year
		}
	}
}

// WithValidator shares v with the assembler. The incident tags are registered on it.
func WithValidator(v *validator.Validate) Option {
	return func(a *Assembler) {
		if v != nil {
			a.validate = v
		}
	}
}

// Assembler turns raw form input into validated store payloads.
type Assembler struct {
	now             func() time.Time
	loc             *time.Location
	minAcademicYear int
	validate        *validator.Validate
}

// NewAssembler constructs an Assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		now:             time.Now,
		loc:             time.UTC,
		minAcademicYear: DefaultMinAcademicYear,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.validate == nil {
		a.validate = validator.New()
	}
	RegisterValidations(a.validate)
	return a
}

// PrepareCreate validates a creation form. It returns FieldErrors listing every
// failing field, or a payload whose optional blanks are omitted.
func (a *Assembler) PrepareCreate(form dto.IncidentForm) (*dto.CreateIncidentPayload, error) {
	now := a.now().In(a.loc)
	var errs FieldErrors

	for _, field := range []string{FieldStudentID, FieldDescription, FieldLocation, FieldWitnesses, FieldImmediateAction, FieldReportedBy} {
		errs.Add(evaluate(a.validate, field, formText(form, field)))
	}

	date, fe := checkIncidentDate(a.validate, form.IncidentDate, temporal.Today(now, a.loc))
	errs.Add(fe)
	clock, fe := checkIncidentTime(a.validate, form.IncidentTime)
	errs.Add(fe)
	year, fe := checkAcademicYear(a.validate, string(form.AcademicYear), a.minAcademicYear, now.Year())
	errs.Add(fe)
	incidentType, fe := checkIncidentType(a.validate, form.IncidentType)
	errs.Add(fe)
	severity, fe := checkSeverity(a.validate, form.SeverityLevel)
	errs.Add(fe)
	notified, fe := checkNotificationDate(form.NotificationDate)
	errs.Add(fe)

	status, fe := checkStatus(a.validate, form.Status, models.IncidentStatusOpen)
	errs.Add(fe)
	if fe == nil && status != models.IncidentStatusOpen {
		errs.Add(fieldError(FieldStatus, CodeInvalid, "new incidents start as %s", models.IncidentStatusOpen))
	}

	frequency, fe := resolveFollowUp(a.validate, form.FollowUpRequired, form.FollowUpFrequency)
	errs.Add(fe)

	if len(errs) > 0 {
		return nil, errs
	}

	return &dto.CreateIncidentPayload{
		StudentID:             strings.TrimSpace(form.StudentID),
		StudentName:           optionalString(form.StudentName),
		IncidentDate:          date,
		IncidentTime:          clock,
		AcademicYear:          year,
		IncidentType:          incidentType,
		SeverityLevel:         severity,
		Description:           strings.TrimSpace(form.Description),
		Location:              strings.TrimSpace(form.Location),
		Witnesses:             optionalString(form.Witnesses),
		ImmediateAction:       strings.TrimSpace(form.ImmediateAction),
		OtherStudentsInvolved: cleanInvolved(form.StudentID, form.OtherStudentsInvolved),
		FollowUpRequired:      form.FollowUpRequired,
		FollowUpFrequency:     frequency,
		ParentsNotified:       form.ParentsNotified,
		NotificationDate:      notified,
		Status:                models.IncidentStatusOpen,
		ReportedBy:            strings.TrimSpace(form.ReportedBy),
		ConfirmationRequired:  RequiresConfirmation(severity),
	}, nil
}

// PrepareUpdate validates an edit of current. Field rules always run first; every
// problem found is returned together in a *Rejection. The same inputs and clock
// reading always produce the same result.
func (a *Assembler) PrepareUpdate(current models.Incident, form dto.IncidentForm) (*dto.UpdateIncidentPayload, error) {
	rejection := &Rejection{}

	for _, field := range []string{FieldDescription, FieldLocation, FieldWitnesses, FieldImmediateAction} {
		rejection.Fields.Add(evaluate(a.validate, field, formText(form, field)))
	}
	notified, fe := checkNotificationDate(form.NotificationDate)
	rejection.Fields.Add(fe)
	frequency, fe := resolveFollowUp(a.validate, form.FollowUpRequired, form.FollowUpFrequency)
	rejection.Fields.Add(fe)

	target, fe := checkStatus(a.validate, form.Status, current.Status)
	rejection.Fields.Add(fe)

	if IsTerminal(current.Status) {
		requested := target
		if requested == "" {
			requested = models.IncidentStatus(upper(form.Status))
		}
		rejection.Transition = &IllegalTransitionError{Current: current.Status, Requested: requested}
		if fields := submittedFields(form); len(fields) > 0 {
			rejection.Immutable = &ImmutableFieldError{Fields: fields}
		}
		return nil, rejection
	}

	var resolvedBy *string
	if fe == nil {
		var stored *string
		if current.Status == models.IncidentStatusResolved {
			stored = current.ResolvedBy
		}
		resolvedBy, fe = resolveResolver(target, form.ResolvedBy, stored)
		rejection.Fields.Add(fe)

		if err := CanTransition(current.Status, target); err != nil {
			rejection.Transition = err.(*IllegalTransitionError)
		}
	}

	if changed := changedWriteOnce(current, form); len(changed) > 0 {
		rejection.Immutable = &ImmutableFieldError{Fields: changed}
	}

	if !rejection.empty() {
		return nil, rejection
	}

	resolvedAt := current.ResolvedAt
	switch {
	case target == models.IncidentStatusOpen:
		resolvedAt = nil
	case current.Status == models.IncidentStatusOpen && target == models.IncidentStatusResolved:
		stamp := temporal.InstantOf(a.now())
		resolvedAt = &stamp
	}

	return &dto.UpdateIncidentPayload{
		Description:           strings.TrimSpace(form.Description),
		Location:              strings.TrimSpace(form.Location),
		Witnesses:             optionalString(form.Witnesses),
		ImmediateAction:       strings.TrimSpace(form.ImmediateAction),
		OtherStudentsInvolved: cleanInvolved(current.StudentID, form.OtherStudentsInvolved),
		FollowUpRequired:      form.FollowUpRequired,
		FollowUpFrequency:     frequency,
		ParentsNotified:       form.ParentsNotified,
		NotificationDate:      notified,
		Status:                target,
		ResolvedBy:            resolvedBy,
		ResolvedAt:            resolvedAt,
		ConfirmationRequired:  RequiresConfirmation(current.SeverityLevel),
		PreviousStatus:        current.Status,
	}, nil
}

// changedWriteOnce lists write-once fields submitted with a value different from the stored one.
func changedWriteOnce(current models.Incident, form dto.IncidentForm) []string {
	var changed []string
	differs := func(field string, same bool) {
		if !same {
			changed = append(changed, field)
		}
	}

	if v := strings.TrimSpace(form.StudentID); v != "" {
		differs(FieldStudentID, v == current.StudentID)
	}
	if v := strings.TrimSpace(form.IncidentDate); v != "" {
		date, err := temporal.NormalizeDate(v)
		differs(FieldIncidentDate, err == nil && date == current.IncidentDate)
	}
	if v := strings.TrimSpace(form.IncidentTime); v != "" {
		clock, err := temporal.NormalizeTime(v)
		differs(FieldIncidentTime, err == nil && clock == current.IncidentTime)
	}
	if v := strings.TrimSpace(string(form.AcademicYear)); v != "" {
		year, err := strconv.Atoi(v)
		differs(FieldAcademicYear, err == nil && year == current.AcademicYear)
	}
	if v := strings.TrimSpace(form.IncidentType); v != "" {
		differs(FieldIncidentType, models.IncidentType(strings.ToUpper(v)) == current.IncidentType)
	}
	if v := strings.TrimSpace(form.SeverityLevel); v != "" {
		differs(FieldSeverityLevel, models.SeverityLevel(strings.ToUpper(v)) == current.SeverityLevel)
	}
	if v := strings.TrimSpace(form.ReportedBy); v != "" {
		differs(FieldReportedBy, v == current.ReportedBy)
	}
	return changed
}

// submittedFields lists every field of form carrying a non-empty value.
func submittedFields(form dto.IncidentForm) []string {
	var fields []string
	text := []string{
		FieldStudentID, FieldIncidentDate, FieldIncidentTime, FieldAcademicYear, FieldIncidentType,
		FieldSeverityLevel, FieldDescription, FieldLocation, FieldWitnesses, FieldImmediateAction,
		FieldFollowUpFrequency, FieldNotificationDate, FieldStatus, FieldResolvedBy, FieldReportedBy,
	}
	for _, field := range text {
		if strings.TrimSpace(formText(form, field)) != "" {
			fields = append(fields, field)
		}
	}
	if len(cleanInvolved("", form.OtherStudentsInvolved)) > 0 {
		fields = append(fields, FieldOtherStudentsInvolved)
	}
	if form.FollowUpRequired {
		fields = append(fields, FieldFollowUpRequired)
	}
	if form.ParentsNotified != nil {
		fields = append(fields, FieldParentsNotified)
	}
	return fields
}

func formText(form dto.IncidentForm, field string) string {
	switch field {
	case FieldStudentID:
		return form.StudentID
	case FieldStudentName:
		return form.StudentName
	case FieldIncidentDate:
		return form.IncidentDate
	case FieldIncidentTime:
		return form.IncidentTime
	case FieldAcademicYear:
		return string(form.AcademicYear)
	case FieldIncidentType:
		return form.IncidentType
	case FieldSeverityLevel:
		return form.SeverityLevel
	case FieldDescription:
		return form.Description
	case FieldLocation:
		return form.Location
	case FieldWitnesses:
		return form.Witnesses
	case FieldImmediateAction:
		return form.ImmediateAction
	case FieldFollowUpFrequency:
		return form.FollowUpFrequency
	case FieldNotificationDate:
		return form.NotificationDate
	case FieldStatus:
		return form.Status
	case FieldResolvedBy:
		return form.ResolvedBy
	case FieldReportedBy:
		return form.ReportedBy
	default:
		return ""
	}
}
