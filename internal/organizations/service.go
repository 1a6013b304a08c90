// Package organizations manages tenants and their members.
package organizations

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/membership"
)

// Organization errors.
var (
	ErrOrganizationNotFound = membership.ErrOrganizationNotFound
	ErrSlugExists           = errors.New("organization with this slug already exists")
	ErrInvalidSlug          = errors.New("slug must contain only lowercase letters, digits and hyphens")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyMember        = errors.New("user is already a member of this organization")
	ErrInvalidRole          = errors.New("role must be admin or member")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Authorizer enforces organization role gates.
type Authorizer interface {
	Authorize(ctx context.Context, orgID, userID string, action membership.Action) error
}

// Service implements organization business logic.
type Service struct {
	repo      Repository
	authority Authorizer
}

// NewService creates a new organizations service.
func NewService(repo Repository, authority Authorizer) *Service {
	return &Service{
		repo:      repo,
		authority: authority,
	}
}

// CreateInput contains data for creating an organization.
type CreateInput struct {
	Slug    string
	Name    string
	Website string
	Logo    string
}

// CreateOrganization creates an organization with the caller as its owner.
func (s *Service) CreateOrganization(ctx context.Context, input CreateInput, userID string) (*domain.Organization, error) {
	slug := strings.TrimSpace(input.Slug)
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}

	org := &domain.Organization{
		Slug:    slug,
		Name:    input.Name,
		Website: input.Website,
		Logo:    input.Logo,
	}

	if err := s.repo.CreateOrganization(ctx, org, userID); err != nil {
		return nil, err
	}

	return org, nil
}

// ListOrganizations returns the organizations the user belongs to.
func (s *Service) ListOrganizations(ctx context.Context, userID string) ([]domain.Organization, error) {
	orgs, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// GetDefault returns the first organization ever created.
func (s *Service) GetDefault(ctx context.Context) (*domain.Organization, error) {
	return s.repo.GetFirstOrganization(ctx)
}

// GetOrganization returns an organization with its members. Only members
// may read it.
func (s *Service) GetOrganization(ctx context.Context, id, userID string) (*domain.Organization, error) {
	if err := s.authority.Authorize(ctx, id, userID, membership.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.GetOrganizationByID(ctx, id)
}

// UpdateInput holds organization metadata changes. Empty fields are kept.
type UpdateInput struct {
	Name    string
	Website string
	Logo    string
}

// UpdateOrganization changes organization metadata.
func (s *Service) UpdateOrganization(ctx context.Context, id string, input UpdateInput, userID string) (*domain.Organization, error) {
	if err := s.authority.Authorize(ctx, id, userID, membership.ActionEditOrganization); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganizationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		org.Name = input.Name
	}
	if input.Website != "" {
		org.Website = input.Website
	}
	if input.Logo != "" {
		org.Logo = input.Logo
	}

	if err := s.repo.UpdateOrganization(ctx, org); err != nil {
		return nil, err
	}

	return org, nil
}

// AddMember adds an existing user, found by email, to the organization.
func (s *Service) AddMember(ctx context.Context, orgID, email string, role domain.Role, userID string) (*domain.Organization, error) {
	if err := s.authority.Authorize(ctx, orgID, userID, membership.ActionManageMembers); err != nil {
		return nil, err
	}

	if role != domain.RoleAdmin && role != domain.RoleMember {
		return nil, ErrInvalidRole
	}

	if err := s.repo.AddMemberByEmail(ctx, orgID, email, role); err != nil {
		return nil, err
	}

	return s.repo.GetOrganizationByID(ctx, orgID)
}

// GetBySlug returns an organization by slug without members.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return s.repo.GetOrganizationBySlug(ctx, slug)
}
