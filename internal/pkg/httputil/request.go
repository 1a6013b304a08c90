package httputil

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UUIDParam returns the named URL parameter if it is a valid UUID.
// Malformed ids are reported as not found by callers.
func UUIDParam(r *http.Request, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if _, err := uuid.Parse(value); err != nil {
		return "", false
	}
	return value, true
}

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset from the query string. limit is
// capped at maxLimit. On invalid input it writes a 400 response and returns
// false.
func ParsePagination(w http.ResponseWriter, r *http.Request, defaultLimit, maxLimit int) (Pagination, bool) {
	p := Pagination{Limit: defaultLimit}

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return p, false
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		p.Limit = parsed
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return p, false
		}
		p.Offset = parsed
	}

	return p, true
}
