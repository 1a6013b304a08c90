package organizations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/membership"
	"github.com/bissquit/orgstatus/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu    sync.Mutex
	orgs  []*domain.Organization
	users map[string]string // email -> user id
	clock time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users: map[string]string{
			"owner@example.com": "owner",
			"alice@example.com": "alice",
			"bob@example.com":   "bob",
		},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memoryRepo) find(id string) *domain.Organization {
	for _, o := range r.orgs {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (r *memoryRepo) CreateOrganization(_ context.Context, org *domain.Organization, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		if o.Slug == org.Slug {
			return ErrSlugExists
		}
	}
	r.clock = r.clock.Add(time.Minute)
	org.ID = uuid.NewString()
	org.CreatedAt = r.clock
	org.Members = []domain.Membership{{OrganizationID: org.ID, UserID: ownerID, Role: domain.RoleOwner}}
	copied := *org
	r.orgs = append(r.orgs, &copied)
	return nil
}

func (r *memoryRepo) GetOrganizationByID(_ context.Context, id string) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.find(id)
	if o == nil {
		return nil, ErrOrganizationNotFound
	}
	copied := *o
	copied.Members = append([]domain.Membership(nil), o.Members...)
	return &copied, nil
}

func (r *memoryRepo) GetOrganizationBySlug(_ context.Context, slug string) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		if o.Slug == slug {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOrganizationNotFound
}

func (r *memoryRepo) GetFirstOrganization(_ context.Context) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.orgs) == 0 {
		return nil, ErrOrganizationNotFound
	}
	copied := *r.orgs[0]
	return &copied, nil
}

func (r *memoryRepo) ListOrganizationsByUser(_ context.Context, userID string) ([]domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Organization, 0)
	for _, o := range r.orgs {
		for _, m := range o.Members {
			if m.UserID == userID {
				result = append(result, *o)
			}
		}
	}
	return result, nil
}

func (r *memoryRepo) UpdateOrganization(_ context.Context, org *domain.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.find(org.ID)
	if o == nil {
		return ErrOrganizationNotFound
	}
	o.Name, o.Website, o.Logo = org.Name, org.Website, org.Logo
	return nil
}

func (r *memoryRepo) AddMemberByEmail(_ context.Context, orgID, email string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.users[strings.ToLower(email)]
	if !ok {
		return ErrUserNotFound
	}
	o := r.find(orgID)
	for _, m := range o.Members {
		if m.UserID == userID {
			return ErrAlreadyMember
		}
	}
	o.Members = append(o.Members, domain.Membership{OrganizationID: orgID, UserID: userID, Role: role})
	return nil
}

func (r *memoryRepo) OrganizationExists(_ context.Context, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(orgID) != nil, nil
}

func (r *memoryRepo) GetMemberRole(_ context.Context, orgID, userID string) (domain.Role, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.find(orgID)
	if o == nil {
		return "", false, nil
	}
	for _, m := range o.Members {
		if m.UserID == userID {
			return m.Role, true, nil
		}
	}
	return "", false, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, membership.NewAuthority(repo)), repo
}

func createOrg(t *testing.T, svc *Service, slug string) *domain.Organization {
	t.Helper()
	org, err := svc.CreateOrganization(context.Background(), CreateInput{Slug: slug, Name: "Acme"}, "owner")
	require.NoError(t, err)
	return org
}

func TestService_CreateOrganization_CreatorIsOwner(t *testing.T) {
	svc, _ := newTestService()

	org := createOrg(t, svc, "acme")

	require.Len(t, org.Members, 1)
	assert.Equal(t, "owner", org.Members[0].UserID)
	assert.Equal(t, domain.RoleOwner, org.Members[0].Role)
}

func TestService_CreateOrganization_DuplicateSlug(t *testing.T) {
	svc, _ := newTestService()
	createOrg(t, svc, "acme")

	_, err := svc.CreateOrganization(context.Background(), CreateInput{Slug: "acme", Name: "Other"}, "alice")
	assert.ErrorIs(t, err, ErrSlugExists)
}

func TestService_CreateOrganization_InvalidSlug(t *testing.T) {
	svc, _ := newTestService()

	for _, slug := range []string{"Acme", "acme corp", "-acme", "acme-", "ac--me", ""} {
		_, err := svc.CreateOrganization(context.Background(), CreateInput{Slug: slug, Name: "x"}, "owner")
		assert.ErrorIs(t, err, ErrInvalidSlug, slug)
	}
}

func TestService_AddMember(t *testing.T) {
	svc, _ := newTestService()
	org := createOrg(t, svc, "acme")
	ctx := context.Background()

	updated, err := svc.AddMember(ctx, org.ID, "alice@example.com", domain.RoleAdmin, "owner")
	require.NoError(t, err)
	assert.Len(t, updated.Members, 2)

	_, err = svc.AddMember(ctx, org.ID, "alice@example.com", domain.RoleMember, "owner")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.AddMember(ctx, org.ID, "nobody@example.com", domain.RoleMember, "owner")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.AddMember(ctx, org.ID, "bob@example.com", domain.RoleOwner, "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.AddMember(ctx, org.ID, "bob@example.com", domain.RoleMember, "alice")
	assert.ErrorIs(t, err, membership.ErrUnauthorized, "admins cannot add members")

	_, err = svc.AddMember(ctx, uuid.NewString(), "bob@example.com", domain.RoleMember, "owner")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestService_AddMember_AuthorizesBeforeRoleCheck(t *testing.T) {
	svc, _ := newTestService()
	org := createOrg(t, svc, "acme")

	_, err := svc.AddMember(context.Background(), org.ID, "alice@example.com", domain.Role("superuser"), "bob")
	assert.ErrorIs(t, err, membership.ErrUnauthorized)

	stranger := newTestRouter(svc, "bob")
	req := httptest.NewRequest(http.MethodPost, "/organizations/"+org.ID+"/members",
		strings.NewReader(`{"email":"alice@example.com","role":"owner"}`))
	rec := httptest.NewRecorder()
	stranger.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestService_UpdateOrganization(t *testing.T) {
	svc, _ := newTestService()
	org := createOrg(t, svc, "acme")
	ctx := context.Background()
	_, err := svc.AddMember(ctx, org.ID, "alice@example.com", domain.RoleAdmin, "owner")
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, org.ID, "bob@example.com", domain.RoleMember, "owner")
	require.NoError(t, err)

	updated, err := svc.UpdateOrganization(ctx, org.ID, UpdateInput{Website: "https://acme.example"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Name, "empty fields are kept")
	assert.Equal(t, "https://acme.example", updated.Website)

	_, err = svc.UpdateOrganization(ctx, org.ID, UpdateInput{Name: "Hacked"}, "bob")
	assert.ErrorIs(t, err, membership.ErrUnauthorized)
}

func TestService_GetOrganization_MembersOnly(t *testing.T) {
	svc, _ := newTestService()
	org := createOrg(t, svc, "acme")

	_, err := svc.GetOrganization(context.Background(), org.ID, "owner")
	assert.NoError(t, err)

	_, err = svc.GetOrganization(context.Background(), org.ID, "alice")
	assert.ErrorIs(t, err, membership.ErrUnauthorized)
}

func TestService_GetDefault(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetDefault(context.Background())
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	first := createOrg(t, svc, "first")
	createOrg(t, svc, "second")

	org, err := svc.GetDefault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, org.ID)
}

func TestService_ListOrganizations(t *testing.T) {
	svc, _ := newTestService()
	createOrg(t, svc, "first")
	createOrg(t, svc, "second")

	orgs, err := svc.ListOrganizations(context.Background(), "owner")
	require.NoError(t, err)
	assert.Len(t, orgs, 2)

	orgs, err = svc.ListOrganizations(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func newTestRouter(svc *Service, userID string) http.Handler {
	h := NewHandler(svc)
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

func TestHandler_OrganizationFlow(t *testing.T) {
	svc, _ := newTestService()
	router := newTestRouter(svc, "owner")

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/organizations", `{"name":"Acme","slug":"acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data domain.Organization `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	assert.Equal(t, http.StatusConflict, send(http.MethodPost, "/organizations", `{"name":"Acme","slug":"acme"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(http.MethodPost, "/organizations", `{"name":"Acme"}`).Code)

	rec = send(http.MethodGet, "/organizations/default", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"`+created.Data.ID+`","slug":"acme","name":"Acme"}}`, rec.Body.String())

	rec = send(http.MethodPost, "/organizations/"+created.Data.ID+"/members", `{"email":"alice@example.com","role":"admin"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodPost, "/organizations/"+created.Data.ID+"/members", `{"email":"bob@example.com","role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPost, "/organizations/"+created.Data.ID+"/members", `{"email":"ghost@example.com","role":"member"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusNotFound, send(http.MethodGet, "/organizations/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, send(http.MethodGet, "/organizations/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/organizations/"+created.Data.ID, "").Code)

	rec = send(http.MethodPut, "/organizations/"+created.Data.ID, `{"name":"Acme Inc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Inc")
}
