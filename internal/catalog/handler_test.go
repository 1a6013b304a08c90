package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture, userID string) http.Handler {
	h := NewHandler(f.service)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), httputil.UserIDKey, userID)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		h.RegisterRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateService(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, testMember)

	rec := doRequest(t, router, http.MethodPost, "/services",
		`{"organization_id":"`+testOrgID+`","name":"API","description":"public api"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			StatusHistory []struct {
				Message string `json:"message"`
			} `json:"status_history"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "operational", resp.Data.Status)
	require.Len(t, resp.Data.StatusHistory, 1)
	assert.Equal(t, "Initial status", resp.Data.StatusHistory[0].Message)
}

func TestHandler_CreateService_Validation(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, testMember)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing name", `{"organization_id":"` + testOrgID + `"}`, http.StatusBadRequest},
		{"bad org id", `{"organization_id":"nope","name":"API"}`, http.StatusBadRequest},
		{"bad status", `{"organization_id":"` + testOrgID + `","name":"API","status":"down"}`, http.StatusBadRequest},
		{"unknown org", `{"organization_id":"` + uuid.NewString() + `","name":"API"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/services", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_CreateService_NonMember(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, "stranger")

	rec := doRequest(t, router, http.MethodPost, "/services",
		`{"organization_id":"`+testOrgID+`","name":"API"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_UpdateStatus(t *testing.T) {
	f := newFixture()
	s := f.createService(t, "API")
	router := newTestRouter(f, testMember)

	rec := doRequest(t, router, http.MethodPut, "/services/"+s.ID+"/status",
		`{"status":"partial_outage","message":"eu region"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := f.service.GetService(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "partial_outage", string(stored.Status))

	rec = doRequest(t, router, http.MethodPut, "/services/"+s.ID+"/status", `{"status":"exploded"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MalformedIDIsNotFound(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, testMember)

	assert.Equal(t, http.StatusNotFound,
		doRequest(t, router, http.MethodPut, "/services/not-a-uuid/status", `{"status":"degraded"}`).Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(t, router, http.MethodDelete, "/services/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(t, router, http.MethodGet, "/services/organization/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(t, router, http.MethodDelete, "/services/"+uuid.NewString(), "").Code)
}

func TestHandler_GetStatusHistory(t *testing.T) {
	f := newFixture()
	s := f.createService(t, "API")
	router := newTestRouter(f, testMember)

	rec := doRequest(t, router, http.MethodGet, "/services/"+s.ID+"/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data StatusHistoryPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 10, resp.Data.Limit)

	rec = doRequest(t, router, http.MethodGet, "/services/"+s.ID+"/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListServicesIsPublic(t *testing.T) {
	f := newFixture()
	f.createService(t, "API")
	router := newTestRouter(f, "")

	rec := doRequest(t, router, http.MethodGet, "/services/organization/"+testOrgID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestHandler_DeleteService(t *testing.T) {
	f := newFixture()
	s := f.createService(t, "API")
	router := newTestRouter(f, testMember)

	rec := doRequest(t, router, http.MethodDelete, "/services/"+s.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
