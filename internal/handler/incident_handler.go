package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-behavior-api/internal/dto"
	"github.com/noah-isme/sma-behavior-api/internal/middleware"
	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/internal/service"
	appErrors "github.com/noah-isme/sma-behavior-api/pkg/errors"
	"github.com/noah-isme/sma-behavior-api/pkg/export"
	"github.com/noah-isme/sma-behavior-api/pkg/response"
)

type incidentService interface {
	Create(ctx context.Context, req dto.CreateIncidentRequest, actor service.Actor) (*dto.IncidentView, error)
	Update(ctx context.Context, id string, req dto.UpdateIncidentRequest, actor service.Actor) (*dto.IncidentView, error)
	Get(ctx context.Context, id string) (*dto.IncidentView, error)
	List(ctx context.Context, query dto.IncidentQuery) (*service.IncidentPage, error)
	Validate(ctx context.Context, id string, form dto.IncidentForm) (*dto.ValidationReport, error)
	Export(ctx context.Context, query dto.IncidentQuery, format export.Format) (*service.ExportFile, error)
	StudentSummary(ctx context.Context, studentID string) (*models.IncidentSummary, error)
}

// IncidentHandler exposes behaviour incident endpoints.
type IncidentHandler struct {
	incidents incidentService
}

// NewIncidentHandler constructs IncidentHandler.
func NewIncidentHandler(incidents incidentService) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

// List godoc
// @Summary List incidents
// @Tags Incidents
// @Produce json
// @Param studentId query string false "Student ID"
// @Param status query []string false "Status filter (OPEN, RESOLVED, CLOSED)" collectionFormat(multi)
// @Param severityLevel query string false "Severity (LEVE, MODERADO, GRAVE)"
// @Param incidentType query string false "Incident type"
// @Param academicYear query int false "Academic year"
// @Param dateFrom query string false "Earliest incident date (YYYY-MM-DD)"
// @Param dateTo query string false "Latest incident date (YYYY-MM-DD)"
// @Param followUp query bool false "Only incidents requiring follow-up"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /incidents [get]
func (h *IncidentHandler) List(c *gin.Context) {
	query, err := incidentQueryFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := h.incidents.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, &page.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get incident
// @Tags Incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /incidents/{id} [get]
func (h *IncidentHandler) Get(c *gin.Context) {
	view, err := h.incidents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Record incident
// @Description GRAVE incidents must be sent with confirmed=true.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param payload body dto.CreateIncidentRequest true "Incident form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /incidents [post]
func (h *IncidentHandler) Create(c *gin.Context) {
	var req dto.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.incidents.Create(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Edit incident or change its status
// @Description Only mutable fields may change. Status changes on GRAVE incidents need confirmed=true.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param payload body dto.UpdateIncidentRequest true "Incident form"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /incidents/{id} [put]
func (h *IncidentHandler) Update(c *gin.Context) {
	var req dto.UpdateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.incidents.Update(c.Request.Context(), c.Param("id"), req, actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ValidateNew godoc
// @Summary Dry-run validation of a new incident
// @Tags Incidents
// @Accept json
// @Produce json
// @Param payload body dto.IncidentForm true "Incident form"
// @Success 200 {object} response.Envelope
// @Router /incidents/validate [post]
func (h *IncidentHandler) ValidateNew(c *gin.Context) {
	h.validate(c, "")
}

// ValidateEdit godoc
// @Summary Dry-run validation of an incident edit
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param payload body dto.IncidentForm true "Incident form"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /incidents/{id}/validate [post]
func (h *IncidentHandler) ValidateEdit(c *gin.Context) {
	h.validate(c, c.Param("id"))
}

func (h *IncidentHandler) validate(c *gin.Context, id string) {
	var form dto.IncidentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.incidents.Validate(c.Request.Context(), id, form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Export incidents
// @Tags Incidents
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param studentId query string false "Student ID"
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param dateFrom query string false "Earliest incident date (YYYY-MM-DD)"
// @Param dateTo query string false "Latest incident date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /incidents/export [get]
func (h *IncidentHandler) Export(c *gin.Context) {
	query, err := incidentQueryFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	file, err := h.incidents.Export(c.Request.Context(), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// StudentSummary godoc
// @Summary Incident counts for a student
// @Tags Incidents
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/incidents/summary [get]
func (h *IncidentHandler) StudentSummary(c *gin.Context) {
	summary, err := h.incidents.StudentSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

func incidentQueryFrom(c *gin.Context) (dto.IncidentQuery, error) {
	query := dto.IncidentQuery{
		StudentID:     strings.TrimSpace(c.Query("studentId")),
		SeverityLevel: strings.TrimSpace(c.Query("severityLevel")),
		IncidentType:  strings.TrimSpace(c.Query("incidentType")),
		DateFrom:      strings.TrimSpace(c.Query("dateFrom")),
		DateTo:        strings.TrimSpace(c.Query("dateTo")),
		FollowUpOnly:  c.Query("followUp") == "true",
	}
	for _, raw := range c.QueryArray("status") {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				query.Statuses = append(query.Statuses, status)
			}
		}
	}

	ints := []struct {
		name   string
		target *int
	}{
		{"academicYear", &query.AcademicYear},
		{"page", &query.Page},
		{"pageSize", &query.PageSize},
	}
	for _, param := range ints {
		raw := strings.TrimSpace(c.Query(param.name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return dto.IncidentQuery{}, appErrors.Clone(appErrors.ErrValidation, param.name+" must be a number")
		}
		*param.target = value
	}
	return query, nil
}

func actorFrom(c *gin.Context) service.Actor {
	actor := service.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if claims := claimsFromContext(c); claims != nil {
		actor.UserID = claims.UserID
		actor.Role = claims.Role
	}
	return actor
}
