package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-behavior-api/internal/dto"
	"github.com/noah-isme/sma-behavior-api/internal/middleware"
	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/internal/service"
	appErrors "github.com/noah-isme/sma-behavior-api/pkg/errors"
	"github.com/noah-isme/sma-behavior-api/pkg/export"
)

type fakeIncidentSrv struct {
	view        *dto.IncidentView
	page        *service.IncidentPage
	report      *dto.ValidationReport
	file        *service.ExportFile
	summary     *models.IncidentSummary
	err         error
	lastActor   service.Actor
	lastCreate  dto.CreateIncidentRequest
	lastUpdate  dto.UpdateIncidentRequest
	lastQuery   dto.IncidentQuery
	lastFormat  export.Format
	lastID      string
	validatedID *string
}

func (f *fakeIncidentSrv) Create(_ context.Context, req dto.CreateIncidentRequest, actor service.Actor) (*dto.IncidentView, error) {
	f.lastCreate, f.lastActor = req, actor
	return f.view, f.err
}

func (f *fakeIncidentSrv) Update(_ context.Context, id string, req dto.UpdateIncidentRequest, actor service.Actor) (*dto.IncidentView, error) {
	f.lastID, f.lastUpdate, f.lastActor = id, req, actor
	return f.view, f.err
}

func (f *fakeIncidentSrv) Get(_ context.Context, id string) (*dto.IncidentView, error) {
	f.lastID = id
	return f.view, f.err
}

func (f *fakeIncidentSrv) List(_ context.Context, query dto.IncidentQuery) (*service.IncidentPage, error) {
	f.lastQuery = query
	return f.page, f.err
}

func (f *fakeIncidentSrv) Validate(_ context.Context, id string, _ dto.IncidentForm) (*dto.ValidationReport, error) {
	f.validatedID = &id
	return f.report, f.err
}

func (f *fakeIncidentSrv) Export(_ context.Context, query dto.IncidentQuery, format export.Format) (*service.ExportFile, error) {
	f.lastQuery, f.lastFormat = query, format
	return f.file, f.err
}

func (f *fakeIncidentSrv) StudentSummary(_ context.Context, studentID string) (*models.IncidentSummary, error) {
	f.lastID = studentID
	return f.summary, f.err
}

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func incidentContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-7", Role: models.RoleTeacher})
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestIncidentHandlerCreate(t *testing.T) {
	srv := &fakeIncidentSrv{view: &dto.IncidentView{Incident: models.Incident{ID: "inc-1"}}}
	handler := NewIncidentHandler(srv)

	c, rec := incidentContext(http.MethodPost, "/incidents", map[string]interface{}{
		"studentId":    "stu-1",
		"academicYear": 2024,
		"confirmed":    true,
	})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "stu-1", srv.lastCreate.StudentID)
	assert.Equal(t, dto.FormText("2024"), srv.lastCreate.AcademicYear)
	assert.True(t, srv.lastCreate.Confirmed)
	assert.Equal(t, "teacher-7", srv.lastActor.UserID)
	assert.Equal(t, models.RoleTeacher, srv.lastActor.Role)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"id":"inc-1"`)
}

func TestIncidentHandlerCreateRejectsMalformedJSON(t *testing.T) {
	handler := NewIncidentHandler(&fakeIncidentSrv{})
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewBufferString("{"))

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentHandlerUpdatePropagatesServiceErrors(t *testing.T) {
	srv := &fakeIncidentSrv{err: appErrors.WithDetails(appErrors.ErrIllegalTransition, nil, map[string]interface{}{
		"current":   "CLOSED",
		"requested": "OPEN",
	})}
	handler := NewIncidentHandler(srv)

	c, rec := incidentContext(http.MethodPut, "/incidents/inc-1", map[string]interface{}{"status": "OPEN"})
	c.Params = gin.Params{{Key: "id", Value: "inc-1"}}
	handler.Update(c)

	require.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "ILLEGAL_TRANSITION", envelope.Error.Code)
	assert.Equal(t, "CLOSED", envelope.Error.Details["current"])
	assert.Equal(t, "inc-1", srv.lastID)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestIncidentHandlerListParsesQuery(t *testing.T) {
	srv := &fakeIncidentSrv{page: &service.IncidentPage{
		Items:      []dto.IncidentView{{Incident: models.Incident{ID: "inc-1"}}},
		Pagination: models.Pagination{Page: 2, PageSize: 10, TotalCount: 11},
	}}
	handler := NewIncidentHandler(srv)

	c, rec := incidentContext(http.MethodGet, "/incidents?status=OPEN,RESOLVED&status=closed&severityLevel=GRAVE&page=2&pageSize=10&followUp=true&academicYear=2024", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"OPEN", "RESOLVED", "closed"}, srv.lastQuery.Statuses)
	assert.Equal(t, "GRAVE", srv.lastQuery.SeverityLevel)
	assert.Equal(t, 2, srv.lastQuery.Page)
	assert.Equal(t, 10, srv.lastQuery.PageSize)
	assert.Equal(t, 2024, srv.lastQuery.AcademicYear)
	assert.True(t, srv.lastQuery.FollowUpOnly)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 11, envelope.Pagination.TotalCount)

	c, rec = incidentContext(http.MethodGet, "/incidents?page=two", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentHandlerValidateRoutesByID(t *testing.T) {
	srv := &fakeIncidentSrv{report: &dto.ValidationReport{Valid: false, FieldErrors: map[string]string{"location": "location is required"}}}
	handler := NewIncidentHandler(srv)

	c, rec := incidentContext(http.MethodPost, "/incidents/validate", map[string]interface{}{"location": ""})
	handler.ValidateNew(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.validatedID)
	assert.Equal(t, "", *srv.validatedID)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"location":"location is required"`)

	c, _ = incidentContext(http.MethodPost, "/incidents/inc-3/validate", map[string]interface{}{})
	c.Params = gin.Params{{Key: "id", Value: "inc-3"}}
	handler.ValidateEdit(c)
	assert.Equal(t, "inc-3", *srv.validatedID)
}

func TestIncidentHandlerExportStreamsFile(t *testing.T) {
	srv := &fakeIncidentSrv{file: &service.ExportFile{Filename: "incidents.pdf", ContentType: "application/pdf", Body: []byte("%PDF")}}
	handler := NewIncidentHandler(srv)

	c, rec := incidentContext(http.MethodGet, "/incidents/export?format=PDF&studentId=stu-1", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatPDF, srv.lastFormat)
	assert.Equal(t, "stu-1", srv.lastQuery.StudentID)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="incidents.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF", rec.Body.String())
}

func TestIncidentHandlerStudentSummary(t *testing.T) {
	srv := &fakeIncidentSrv{err: errors.New("boom")}
	handler := NewIncidentHandler(srv)

	c, rec := incidentContext(http.MethodGet, "/students/stu-1/incidents/summary", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	handler.StudentSummary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "stu-1", srv.lastID)
}
