package publicstatus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeOrgs struct {
	orgs map[string]*domain.Organization
}

func (f *fakeOrgs) GetBySlug(_ context.Context, slug string) (*domain.Organization, error) {
	org, ok := f.orgs[slug]
	if !ok {
		return nil, membership.ErrOrganizationNotFound
	}
	return org, nil
}

type fakeServices struct {
	services []domain.Service
	err      error
}

func (f *fakeServices) ListServices(_ context.Context, _ string) ([]domain.Service, error) {
	return f.services, f.err
}

type fakeIncidents struct {
	active    []domain.Incident
	resolved  []domain.Incident
	gotSince  time.Time
	activeErr error
}

func (f *fakeIncidents) ListActiveIncidents(_ context.Context, _ string) ([]domain.Incident, error) {
	return f.active, f.activeErr
}

func (f *fakeIncidents) ListRecentlyResolved(_ context.Context, _ string, since time.Time) ([]domain.Incident, error) {
	f.gotSince = since
	return f.resolved, nil
}

func newTestProjector(services *fakeServices, incidents *fakeIncidents) *Projector {
	orgs := &fakeOrgs{orgs: map[string]*domain.Organization{
		"acme": {
			ID:      "11111111-1111-1111-1111-111111111111",
			Slug:    "acme",
			Name:    "Acme",
			Website: "https://acme.example",
			Logo:    "https://acme.example/logo.png",
		},
	}}
	p := NewProjector(orgs, services, incidents)
	p.now = func() time.Time { return testNow }
	return p
}

func history(statuses ...domain.ServiceStatus) []domain.StatusHistoryEntry {
	entries := make([]domain.StatusHistoryEntry, 0, len(statuses))
	for i, s := range statuses {
		entries = append(entries, domain.StatusHistoryEntry{
			Status:    s,
			Timestamp: testNow.Add(-time.Duration(len(statuses)-i) * time.Hour),
		})
	}
	return entries
}

func TestProject(t *testing.T) {
	services := &fakeServices{services: []domain.Service{
		{
			ID:            "svc-api",
			Name:          "API",
			Status:        domain.ServiceStatusPartialOutage,
			StatusHistory: history(domain.ServiceStatusOperational, domain.ServiceStatusPartialOutage),
		},
		{
			ID:            "svc-web",
			Name:          "Web",
			Status:        domain.ServiceStatusOperational,
			StatusHistory: history(domain.ServiceStatusOperational),
		},
	}}
	end := testNow.Add(-24 * time.Hour)
	incidents := &fakeIncidents{
		active:   []domain.Incident{{ID: "inc-open", Status: domain.IncidentStatusIdentified}},
		resolved: []domain.Incident{{ID: "inc-done", Status: domain.IncidentStatusResolved, EndTime: &end}},
	}

	page, err := newTestProjector(services, incidents).Project(context.Background(), "acme")

	require.NoError(t, err)
	assert.Equal(t, Organization{Name: "Acme", Website: "https://acme.example", Logo: "https://acme.example/logo.png"}, page.Organization)
	assert.Equal(t, domain.ServiceStatusPartialOutage, page.Status.Overall)
	assert.Equal(t, "Partial Outage", page.Status.Label)
	require.Len(t, page.Status.Services, 2)
	assert.Equal(t, "99.50", page.Status.Services[0].Uptime)
	assert.Equal(t, "100.00", page.Status.Services[1].Uptime)
	assert.Equal(t, "Operational", page.Status.Services[1].Label)
	assert.Equal(t, "inc-open", page.Incidents.Active[0].ID)
	assert.Equal(t, "inc-done", page.Incidents.Recent[0].ID)
	assert.Equal(t, testNow.Add(-RecentWindow), incidents.gotSince)
}

func TestProject_EmptyOrganization(t *testing.T) {
	page, err := newTestProjector(&fakeServices{}, &fakeIncidents{}).Project(context.Background(), "acme")

	require.NoError(t, err)
	assert.Equal(t, domain.ServiceStatusOperational, page.Status.Overall)
	assert.Equal(t, "All Systems Operational", page.Status.Label)
	assert.NotNil(t, page.Status.Services)
	assert.NotNil(t, page.Incidents.Active)
	assert.NotNil(t, page.Incidents.Recent)
}

func TestProject_Errors(t *testing.T) {
	_, err := newTestProjector(&fakeServices{}, &fakeIncidents{}).Project(context.Background(), "nobody")
	assert.ErrorIs(t, err, membership.ErrOrganizationNotFound)

	loadErr := errors.New("pool closed")
	_, err = newTestProjector(&fakeServices{}, &fakeIncidents{activeErr: loadErr}).Project(context.Background(), "acme")
	assert.ErrorIs(t, err, loadErr)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Major Outage", StatusLabel(domain.ServiceStatusMajorOutage))
	assert.Equal(t, "Degraded", OverallLabel(domain.ServiceStatusDegraded))
	assert.Equal(t, "All Systems Operational", OverallLabel(domain.ServiceStatusOperational))
}

func TestHandler_GetStatus(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(newTestProjector(&fakeServices{}, &fakeIncidents{})).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/status/acme", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"All Systems Operational"`)
	assert.NotContains(t, rec.Body.String(), "11111111-1111-1111-1111-111111111111", "organization id is not exposed")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/status/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
