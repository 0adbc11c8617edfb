package incident

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-behavior-api/internal/dto"
	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/pkg/temporal"
)

var schoolZone = time.FixedZone("CLT", -3*60*60)

func fixedAssembler(now time.Time) *Assembler {
	return NewAssembler(WithClock(func() time.Time { return now }), WithLocation(schoolZone))
}

func validForm() dto.IncidentForm {
	return dto.IncidentForm{
		StudentID:       "stu-1",
		StudentName:     "Ana Pérez",
		IncidentDate:    "2024-03-05",
		IncidentTime:    "10:30",
		AcademicYear:    "2024",
		IncidentType:    "CONFLICTO",
		SeverityLevel:   "MODERADO",
		Description:     "A valid incident description.",
		Location:        "Patio central",
		Witnesses:       "   ",
		ImmediateAction: "Se separó a los estudiantes.",
		ReportedBy:      "teacher-7",
	}
}

func openIncident() models.Incident {
	return models.Incident{
		ID:              "inc-1",
		StudentID:       "stu-1",
		IncidentDate:    temporal.Date{Year: 2024, Month: time.March, Day: 5},
		IncidentTime:    temporal.TimeOfDay{Hour: 10, Minute: 30},
		AcademicYear:    2024,
		IncidentType:    models.IncidentTypeConflict,
		SeverityLevel:   models.SeverityModerate,
		Description:     "A valid incident description.",
		Location:        "Patio central",
		ImmediateAction: "Se separó a los estudiantes.",
		Status:          models.IncidentStatusOpen,
		ReportedBy:      "teacher-7",
	}
}

func editForm() dto.IncidentForm {
	return dto.IncidentForm{
		Description:     "A valid incident description, updated.",
		Location:        "Patio central",
		ImmediateAction: "Se separó a los estudiantes.",
	}
}

func TestPrepareCreateValidFormOmitsBlankOptionals(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	payload, err := assembler.PrepareCreate(validForm())
	require.NoError(t, err)

	name := "Ana Pérez"
	want := &dto.CreateIncidentPayload{
		StudentID:             "stu-1",
		StudentName:           &name,
		IncidentDate:          temporal.Date{Year: 2024, Month: time.March, Day: 5},
		IncidentTime:          temporal.TimeOfDay{Hour: 10, Minute: 30},
		AcademicYear:          2024,
		IncidentType:          models.IncidentTypeConflict,
		SeverityLevel:         models.SeverityModerate,
		Description:           "A valid incident description.",
		Location:              "Patio central",
		ImmediateAction:       "Se separó a los estudiantes.",
		OtherStudentsInvolved: []string{},
		Status:                models.IncidentStatusOpen,
		ReportedBy:            "teacher-7",
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "10:30:00", payload.IncidentTime.String())
	assert.Nil(t, payload.Witnesses)
	assert.Nil(t, payload.FollowUpFrequency)
	assert.Nil(t, payload.NotificationDate)
}

func TestPrepareCreateCollectsEveryFieldError(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	_, err := assembler.PrepareCreate(dto.IncidentForm{Witnesses: "ab", FollowUpRequired: true})
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))

	assert.Equal(t, map[string]Code{
		FieldStudentID:         CodeRequired,
		FieldDescription:       CodeRequired,
		FieldLocation:          CodeRequired,
		FieldWitnesses:         CodeMinLength,
		FieldImmediateAction:   CodeRequired,
		FieldReportedBy:        CodeRequired,
		FieldIncidentDate:      CodeRequired,
		FieldIncidentTime:      CodeRequired,
		FieldAcademicYear:      CodeRequired,
		FieldIncidentType:      CodeRequired,
		FieldSeverityLevel:     CodeRequired,
		FieldFollowUpFrequency: CodeRequired,
	}, errs.Codes())
}

func TestPrepareCreateDescriptionLength(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	form.Description = "ok"
	_, err := assembler.PrepareCreate(form)
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, CodeMinLength, errs.Get(FieldDescription).Code)
}

func TestPrepareCreateWitnesses(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	form.Witnesses = "ab"
	_, err := assembler.PrepareCreate(form)
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeMinLength, errs.Get(FieldWitnesses).Code)

	form.Witnesses = "  Profesor Soto  "
	payload, err := assembler.PrepareCreate(form)
	require.NoError(t, err)
	require.NotNil(t, payload.Witnesses)
	assert.Equal(t, "Profesor Soto", *payload.Witnesses)
}

func TestPrepareCreateFutureDateUsesSchoolZone(t *testing.T) {
	// 01:30 UTC on March 6th is still March 5th at the school.
	assembler := fixedAssembler(time.Date(2024, 3, 6, 1, 30, 0, 0, time.UTC))

	form := validForm()
	_, err := assembler.PrepareCreate(form)
	require.NoError(t, err, "today is accepted")

	form.IncidentDate = "2024-03-06"
	_, err = assembler.PrepareCreate(form)
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeFutureDate, errs.Get(FieldIncidentDate).Code)
}

func TestPrepareCreateAcademicYearRange(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	form.AcademicYear = "2025"
	_, err := assembler.PrepareCreate(form)
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeRange, errs.Get(FieldAcademicYear).Code)

	strict := NewAssembler(
		WithClock(func() time.Time { return time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone) }),
		WithLocation(schoolZone),
		WithMinAcademicYear(2024),
	)
	form.AcademicYear = "2023"
	_, err = strict.PrepareCreate(form)
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeRange, errs.Get(FieldAcademicYear).Code)
}

func TestPrepareCreateInvolvedStudents(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	form.OtherStudentsInvolved = []string{"stu-1", "s2", "s2", ""}
	payload, err := assembler.PrepareCreate(form)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, payload.OtherStudentsInvolved)

	form.OtherStudentsInvolved = []string{" s3 ", "   ", "s2", "s3", " stu-1"}
	payload, err = assembler.PrepareCreate(form)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s2"}, payload.OtherStudentsInvolved)
}

func TestPrepareCreateFollowUpPairing(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	form.FollowUpFrequency = "SEMANAL"
	payload, err := assembler.PrepareCreate(form)
	require.NoError(t, err)
	assert.Nil(t, payload.FollowUpFrequency, "frequency without follow-up is dropped")

	form.FollowUpRequired = true
	payload, err = assembler.PrepareCreate(form)
	require.NoError(t, err)
	require.NotNil(t, payload.FollowUpFrequency)
	assert.Equal(t, models.FollowUpWeekly, *payload.FollowUpFrequency)

	form.FollowUpFrequency = "ANUAL"
	_, err = assembler.PrepareCreate(form)
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeInvalid, errs.Get(FieldFollowUpFrequency).Code)
}

func TestPrepareCreateFlagsSevereIncidents(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	payload, err := assembler.PrepareCreate(form)
	require.NoError(t, err)
	assert.False(t, payload.ConfirmationRequired)

	form.SeverityLevel = "GRAVE"
	payload, err = assembler.PrepareCreate(form)
	require.NoError(t, err)
	assert.True(t, payload.ConfirmationRequired)
}

func TestPrepareCreateRejectsNonInitialStatus(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 5, 15, 0, 0, 0, schoolZone))

	form := validForm()
	form.Status = "RESOLVED"
	form.ResolvedBy = "director"
	_, err := assembler.PrepareCreate(form)
	var errs FieldErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeInvalid, errs.Get(FieldStatus).Code)

	form.Status = "open"
	payload, err := assembler.PrepareCreate(form)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusOpen, payload.Status)
}

func TestPrepareUpdateResolveRequiresResolver(t *testing.T) {
	now := time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone)
	assembler := fixedAssembler(now)

	form := editForm()
	form.Status = "RESOLVED"
	_, err := assembler.PrepareUpdate(openIncident(), form)

	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Nil(t, rejection.Transition)
	assert.Equal(t, CodeRequired, rejection.Fields.Get(FieldResolvedBy).Code)

	form.ResolvedBy = "Inspectora Rojas"
	payload, err := assembler.PrepareUpdate(openIncident(), form)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusResolved, payload.Status)
	require.NotNil(t, payload.ResolvedBy)
	assert.Equal(t, "Inspectora Rojas", *payload.ResolvedBy)
	require.NotNil(t, payload.ResolvedAt)
	assert.True(t, payload.ResolvedAt.Time.Equal(now))
	assert.True(t, payload.StatusChanged())
}

func TestPrepareUpdateReportsFieldAndTransitionErrorsTogether(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone))

	form := editForm()
	form.Description = "ok"
	form.Status = "CLOSED"
	form.ResolvedBy = "Inspectora Rojas"
	_, err := assembler.PrepareUpdate(openIncident(), form)

	var fields FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, CodeMinLength, fields.Get(FieldDescription).Code)

	var illegal *IllegalTransitionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, models.IncidentStatusOpen, illegal.Current)
	assert.Equal(t, models.IncidentStatusClosed, illegal.Requested)
}

func TestPrepareUpdateBackwardsTransition(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone))

	current := openIncident()
	resolver := "Inspectora Rojas"
	current.Status = models.IncidentStatusResolved
	current.ResolvedBy = &resolver

	form := editForm()
	form.Status = "OPEN"
	_, err := assembler.PrepareUpdate(current, form)

	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	require.NotNil(t, rejection.Transition)
	assert.Empty(t, rejection.Fields)
}

func TestPrepareUpdateCloseKeepsStoredResolver(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 9, 9, 0, 0, 0, schoolZone))

	resolvedAt := temporal.InstantOf(time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC))
	resolver := "Inspectora Rojas"
	current := openIncident()
	current.Status = models.IncidentStatusResolved
	current.ResolvedBy = &resolver
	current.ResolvedAt = &resolvedAt

	form := editForm()
	form.Status = "CLOSED"
	payload, err := assembler.PrepareUpdate(current, form)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusClosed, payload.Status)
	assert.Equal(t, resolver, *payload.ResolvedBy)
	assert.Equal(t, resolvedAt, *payload.ResolvedAt, "resolvedAt is only assigned on OPEN -> RESOLVED")
}

func TestPrepareUpdateOpenDropsResolver(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone))

	form := editForm()
	form.ResolvedBy = "Inspectora Rojas"
	payload, err := assembler.PrepareUpdate(openIncident(), form)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusOpen, payload.Status)
	assert.Nil(t, payload.ResolvedBy)
	assert.Nil(t, payload.ResolvedAt)
	assert.False(t, payload.StatusChanged())
}

func TestPrepareUpdateWriteOnceFields(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone))

	form := editForm()
	form.StudentID = "stu-1"
	form.IncidentDate = "2024-03-05"
	form.IncidentTime = "10:30:00"
	form.AcademicYear = "2024"
	form.SeverityLevel = "moderado"
	_, err := assembler.PrepareUpdate(openIncident(), form)
	require.NoError(t, err, "resubmitting stored values is allowed while the incident is open")

	form.IncidentDate = "2024-03-04"
	form.SeverityLevel = "GRAVE"
	_, err = assembler.PrepareUpdate(openIncident(), form)
	var immutable *ImmutableFieldError
	require.True(t, errors.As(err, &immutable))
	assert.Equal(t, []string{FieldIncidentDate, FieldSeverityLevel}, immutable.Fields)
}

func TestPrepareUpdateClosedIncidentIsFrozen(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 9, 9, 0, 0, 0, schoolZone))

	current := openIncident()
	current.Status = models.IncidentStatusClosed

	form := dto.IncidentForm{StudentID: current.StudentID, Description: current.Description}
	_, err := assembler.PrepareUpdate(current, form)
	var immutable *ImmutableFieldError
	require.True(t, errors.As(err, &immutable))
	assert.Equal(t, []string{FieldStudentID, FieldDescription}, immutable.Fields)

	_, err = assembler.PrepareUpdate(current, dto.IncidentForm{})
	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Nil(t, rejection.Immutable)
	require.NotNil(t, rejection.Transition)
	assert.Equal(t, models.IncidentStatusClosed, rejection.Transition.Requested)
}

func TestPrepareUpdateSevereIncidentNeedsConfirmation(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone))

	current := openIncident()
	current.SeverityLevel = models.SeveritySevere
	payload, err := assembler.PrepareUpdate(current, editForm())
	require.NoError(t, err)
	assert.True(t, payload.ConfirmationRequired)
}

func TestPrepareUpdateIsIdempotent(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 7, 9, 0, 0, 0, schoolZone))

	form := editForm()
	form.Status = "RESOLVED"
	form.ResolvedBy = "Inspectora Rojas"
	form.FollowUpRequired = true
	form.FollowUpFrequency = "QUINCENAL"
	form.OtherStudentsInvolved = []string{"s2", "stu-1"}
	form.NotificationDate = "2024-03-06T18:00:00-03:00"

	first, err := assembler.PrepareUpdate(openIncident(), form)
	require.NoError(t, err)
	second, err := assembler.PrepareUpdate(openIncident(), form)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated update differs (-first +second):\n%s", diff)
	}
}

func TestPrepareUpdateClosedIncidentStillReportsFieldErrors(t *testing.T) {
	assembler := fixedAssembler(time.Date(2024, 3, 9, 9, 0, 0, 0, schoolZone))

	current := openIncident()
	current.Status = models.IncidentStatusClosed

	form := editForm()
	form.Description = "mal"
	form.ImmediateAction = "Llamado al apoderado!"
	_, err := assembler.PrepareUpdate(current, form)

	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, map[string]Code{
		FieldDescription:     CodeMinLength,
		FieldImmediateAction: CodePattern,
	}, rejection.Fields.Codes())
	require.NotNil(t, rejection.Transition)
	assert.Equal(t, models.IncidentStatusClosed, rejection.Transition.Current)
	require.NotNil(t, rejection.Immutable)
	assert.Contains(t, rejection.Immutable.Fields, FieldDescription)
}

func TestAssemblerSharesValidator(t *testing.T) {
	shared := validator.New()
	NewAssembler(WithValidator(shared))

	assert.NoError(t, shared.Var("grave", TagSeverityLevel))
	assert.Error(t, shared.Var("  ", TagTrimmedRequired))
}
