package publicstatus

import (
	"net/http"

	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

var publicErrorMappings = []httputil.ErrorMapping{
	{Error: membership.ErrOrganizationNotFound, Status: http.StatusNotFound},
}

// Handler serves public status pages.
type Handler struct {
	projector *Projector
}

// NewHandler creates a new public status handler.
func NewHandler(projector *Projector) *Handler {
	return &Handler{projector: projector}
}

// RegisterRoutes registers unauthenticated routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/public/status/{orgSlug}", h.GetStatus)
}

// GetStatus handles GET /public/status/{orgSlug} request.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	page, err := h.projector.Project(r.Context(), chi.URLParam(r, "orgSlug"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, publicErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, page)
}
