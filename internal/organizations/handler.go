package organizations

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var organizationErrorMappings = []httputil.ErrorMapping{
	{Error: ErrOrganizationNotFound, Status: http.StatusNotFound},
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrSlugExists, Status: http.StatusConflict},
	{Error: ErrAlreadyMember, Status: http.StatusConflict},
	{Error: ErrInvalidSlug, Status: http.StatusBadRequest},
	{Error: ErrInvalidRole, Status: http.StatusBadRequest},
	{Error: membership.ErrUnauthorized, Status: http.StatusUnauthorized, Message: "not authorized"},
}

// Handler handles HTTP requests for organizations.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new organizations handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterPublicRoutes registers unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/organizations/default", h.GetDefault)
}

// RegisterRoutes registers routes that require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/organizations", func(r chi.Router) {
		r.Post("/", h.CreateOrganization)
		r.Get("/", h.ListOrganizations)
		r.Get("/{id}", h.GetOrganization)
		r.Put("/{id}", h.UpdateOrganization)
		r.Post("/{id}/members", h.AddMember)
	})
}

// CreateOrganizationRequest represents the request body for creating an organization.
type CreateOrganizationRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=255"`
	Slug    string `json:"slug" validate:"required,min=1,max=255"`
	Website string `json:"website" validate:"omitempty,url,max=1024"`
	Logo    string `json:"logo" validate:"omitempty,url,max=1024"`
}

// UpdateOrganizationRequest represents the request body for updating an organization.
// Empty fields are left unchanged.
type UpdateOrganizationRequest struct {
	Name    string `json:"name" validate:"max=255"`
	Website string `json:"website" validate:"omitempty,url,max=1024"`
	Logo    string `json:"logo" validate:"omitempty,url,max=1024"`
}

// AddMemberRequest represents the request body for adding a member.
type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// DefaultOrganizationResponse is the public view of the default organization.
type DefaultOrganizationResponse struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// CreateOrganization handles POST /organizations request.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), CreateInput{
		Slug:    req.Slug,
		Name:    req.Name,
		Website: req.Website,
		Logo:    req.Logo,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, organizationErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, org)
}

// ListOrganizations handles GET /organizations request.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.ListOrganizations(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, organizationErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, orgs)
}

// GetDefault handles GET /organizations/default request.
func (h *Handler) GetDefault(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.GetDefault(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, organizationErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, DefaultOrganizationResponse{
		ID:   org.ID,
		Slug: org.Slug,
		Name: org.Name,
	})
}

// GetOrganization handles GET /organizations/{id} request.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrOrganizationNotFound.Error())
		return
	}

	org, err := h.service.GetOrganization(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, organizationErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// UpdateOrganization handles PUT /organizations/{id} request.
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrOrganizationNotFound.Error())
		return
	}

	var req UpdateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org, err := h.service.UpdateOrganization(r.Context(), id, UpdateInput{
		Name:    req.Name,
		Website: req.Website,
		Logo:    req.Logo,
	}, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, organizationErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, org)
}

// AddMember handles POST /organizations/{id}/members request.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.UUIDParam(r, "id")
	if !ok {
		httputil.Error(w, http.StatusNotFound, ErrOrganizationNotFound.Error())
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	org, err := h.service.AddMember(r.Context(), id, req.Email, domain.Role(req.Role), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, organizationErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, org)
}
