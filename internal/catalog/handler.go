package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/bissquit/orgstatus/internal/status"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Pagination constants.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

var serviceErrorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: membership.ErrOrganizationNotFound, Status: http.StatusNotFound},
	{Error: membership.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "not authorized"},
	{Error: status.ErrInvalidStatus, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for services.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterPublicRoutes registers unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/services/organization/{orgId}", h.ListServices)
}

// RegisterRoutes registers routes that require an authenticated member.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/services", h.CreateService)
	r.Put("/services/{id}/status", h.UpdateStatus)
	r.Get("/services/{id}/history", h.GetStatusHistory)
	r.Delete("/services/{id}", h.DeleteService)
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	Name           string `json:"name" validate:"required,min=1,max=255"`
	Description    string `json:"description" validate:"max=2000"`
	Status         string `json:"status" validate:"omitempty,oneof=operational degraded partial_outage major_outage"`
}

// UpdateStatusRequest represents the request body for a manual status change.
type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=operational degraded partial_outage major_outage"`
	Message string `json:"message" validate:"max=2000"`
}

// CreateService handles POST /services request.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.CreateService(r.Context(), CreateServiceInput{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         domain.ServiceStatus(req.Status),
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// ListServices handles GET /services/organization/{orgId} request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.UUIDParam(r, "orgId")
	if !ok {
		httputil.Error(w, http.StatusNotFound, membership.ErrOrganizationNotFound.Error())
		return
	}

	services, err := h.service.ListServices(r.Context(), orgID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// UpdateStatus handles PUT /services/{id}/status request.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service, err := h.service.UpdateStatus(r.Context(), id, domain.ServiceStatus(req.Status), req.Message,
		httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// GetStatusHistory handles GET /services/{id}/history request.
func (h *Handler) GetStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	page, ok := httputil.ParsePagination(w, r, DefaultHistoryLimit, MaxHistoryLimit)
	if !ok {
		return
	}

	history, err := h.service.ListStatusHistory(r.Context(), id, httputil.GetUserID(r.Context()), page.Limit, page.Offset)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, history)
}

// DeleteService handles DELETE /services/{id} request.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrServiceNotFound.Error())
		return
	}

	if err := h.service.DeleteService(r.Context(), id, httputil.GetUserID(r.Context())); err != nil {
		httputil.HandleError(r.Context(), w, err, serviceErrorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
