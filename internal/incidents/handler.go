package incidents

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/bissquit/orgstatus/internal/status"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var incidentErrorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: membership.ErrOrganizationNotFound, Status: http.StatusNotFound},
	{Error: membership.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "not authorized"},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrInvalidSeverity, Status: http.StatusBadRequest},
	{Error: ErrInvalidType, Status: http.StatusBadRequest},
	{Error: ErrInvalidTransition, Status: http.StatusBadRequest},
	{Error: ErrServicesRequired, Status: http.StatusBadRequest},
	{Error: ErrUnknownServices, Status: http.StatusBadRequest},
	{Error: status.ErrInvalidStatus, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterPublicRoutes registers unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/incidents/organization/{orgId}", h.ListActiveIncidents)
	r.Get("/incidents/{id}", h.GetIncident)
}

// RegisterRoutes registers routes that require an authenticated member.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/incidents", h.CreateIncident)
	r.Put("/incidents/{id}", h.EditIncident)
	r.Delete("/incidents/{id}", h.DeleteIncident)
	r.Post("/incidents/{id}/updates", h.AppendUpdate)
}

// CreateIncidentRequest represents the request body for creating an incident.
// Services must be present; an empty array is allowed.
type CreateIncidentRequest struct {
	OrganizationID string     `json:"organization_id" validate:"required,uuid"`
	Title          string     `json:"title" validate:"required,min=1,max=500"`
	Description    string     `json:"description" validate:"required,max=10000"`
	Severity       string     `json:"severity" validate:"omitempty,oneof=minor major critical"`
	Type           string     `json:"type" validate:"omitempty,oneof=incident maintenance"`
	Status         string     `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Services       []string   `json:"services" validate:"required,dive,uuid"`
	StartTime      *time.Time `json:"start_time"`
}

// EditIncidentRequest represents the request body for editing an incident.
// Omitted fields are kept; end_time may be set to null.
type EditIncidentRequest struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=500"`
	Description *string      `json:"description" validate:"omitempty,max=10000"`
	Severity    *string      `json:"severity" validate:"omitempty,oneof=minor major critical"`
	Type        *string      `json:"type" validate:"omitempty,oneof=incident maintenance"`
	Status      *string      `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Services    *[]string    `json:"services" validate:"omitempty,dive,uuid"`
	StartTime   *time.Time   `json:"start_time"`
	EndTime     NullableTime `json:"end_time"`
}

// AppendUpdateRequest represents the request body for posting an update.
type AppendUpdateRequest struct {
	Message string `json:"message" validate:"required,min=1,max=10000"`
	Status  string `json:"status" validate:"required,oneof=investigating identified monitoring resolved"`
}

// UnmarshalJSON marks the field as set, including when the value is null.
func (n *NullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	n.Value = nil
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Value = &t
	return nil
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.CreateIncident(r.Context(), CreateInput{
		OrganizationID: req.OrganizationID,
		Title:          req.Title,
		Description:    req.Description,
		Severity:       domain.Severity(req.Severity),
		Type:           domain.IncidentType(req.Type),
		Status:         domain.IncidentStatus(req.Status),
		ServiceIDs:     req.Services,
		StartTime:      req.StartTime,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	incident, err := h.service.GetIncident(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// ListActiveIncidents handles GET /incidents/organization/{orgId} request.
func (h *Handler) ListActiveIncidents(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.UUIDParam(r, "orgId")
	if !ok {
		httputil.Error(w, http.StatusNotFound, membership.ErrOrganizationNotFound.Error())
		return
	}

	incidents, err := h.service.ListActiveIncidents(r.Context(), orgID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}

// EditIncident handles PUT /incidents/{id} request.
func (h *Handler) EditIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	var req EditIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := EditInput{
		Title:       req.Title,
		Description: req.Description,
		ServiceIDs:  req.Services,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if req.Severity != nil {
		severity := domain.Severity(*req.Severity)
		input.Severity = &severity
	}
	if req.Type != nil {
		incidentType := domain.IncidentType(*req.Type)
		input.Type = &incidentType
	}
	if req.Status != nil {
		incidentStatus := domain.IncidentStatus(*req.Status)
		input.Status = &incidentStatus
	}

	incident, err := h.service.EditIncident(r.Context(), id, input, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// DeleteIncident handles DELETE /incidents/{id} request.
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	if err := h.service.DeleteIncident(r.Context(), id, httputil.GetUserID(r.Context())); err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AppendUpdate handles POST /incidents/{id}/updates request.
func (h *Handler) AppendUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrIncidentNotFound.Error())
		return
	}

	var req AppendUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.AppendUpdate(r.Context(), id, req.Message,
		domain.IncidentStatus(req.Status), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidentErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}
