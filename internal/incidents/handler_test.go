package incidents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture, userID string) chi.Router {
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

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_IncidentLifecycle(t *testing.T) {
	f := newFixture(t)
	api := f.repo.addService(testOrgID, "API")
	r := newTestRouter(f, testMember)

	rec := doRequest(r, http.MethodPost, "/incidents",
		`{"organization_id":"`+testOrgID+`","title":"API down","description":"errors","severity":"critical","services":["`+api+`"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data domain.Incident `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.IncidentStatusInvestigating, created.Data.Status)
	assert.Equal(t, domain.ServiceStatusMajorOutage, f.repo.service(api).Status)

	rec = doRequest(r, http.MethodGet, "/incidents/organization/"+testOrgID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Data.ID)

	rec = doRequest(r, http.MethodPost, "/incidents/"+created.Data.ID+"/updates", `{"message":"fixed","status":"resolved"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ServiceStatusOperational, f.repo.service(api).Status)

	rec = doRequest(r, http.MethodPut, "/incidents/"+created.Data.ID, `{"end_time":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"end_time":null`)

	rec = doRequest(r, http.MethodDelete, "/incidents/"+created.Data.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(r, http.MethodGet, "/incidents/"+created.Data.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CreateValidation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f, testMember)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{
			name:       "services missing",
			body:       `{"organization_id":"` + testOrgID + `","title":"x","description":"d"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "services",
		},
		{
			name:       "services null",
			body:       `{"organization_id":"` + testOrgID + `","title":"x","description":"d","services":null}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "services",
		},
		{
			name:       "services not uuids",
			body:       `{"organization_id":"` + testOrgID + `","title":"x","description":"d","services":["api"]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "services[0]",
		},
		{
			name:       "description missing",
			body:       `{"organization_id":"` + testOrgID + `","title":"x","services":[]}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "description",
		},
		{
			name:       "empty services allowed",
			body:       `{"organization_id":"` + testOrgID + `","title":"x","description":"d","services":[]}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "bad severity",
			body:       `{"organization_id":"` + testOrgID + `","title":"x","description":"d","services":[],"severity":"huge"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "severity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(r, http.MethodPost, "/incidents", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantField != "" {
				assert.Contains(t, rec.Body.String(), `"field":"`+tt.wantField+`"`)
			}
		})
	}
}

func TestHandler_Errors(t *testing.T) {
	f := newFixture(t)
	incident := f.create(t, CreateInput{})

	member := newTestRouter(f, testMember)
	stranger := newTestRouter(f, outsider)

	assert.Equal(t, http.StatusNotFound, doRequest(member, http.MethodPut, "/incidents/not-a-uuid", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(member, http.MethodDelete, "/incidents/33333333-3333-3333-3333-333333333333", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(stranger, http.MethodDelete, "/incidents/"+incident.ID, "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(member, http.MethodPost, "/incidents/"+incident.ID+"/updates", `{"message":"x","status":"paused"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(member, http.MethodPut, "/incidents/"+incident.ID, `{`).Code)
}
