// Package membership decides whether a user may act on an organization.
// All role checks in the service live here.
package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/orgstatus/internal/domain"
)

// Authority errors.
var (
	ErrUnauthorized         = errors.New("not authorized")
	ErrOrganizationNotFound = errors.New("organization not found")
)

// Action is something a user wants to do within an organization.
type Action int

// Actions, each gated by a minimum set of roles.
const (
	// ActionRead reads private organization data.
	ActionRead Action = iota
	// ActionMutateResources creates, updates or deletes services and incidents.
	ActionMutateResources
	// ActionEditOrganization changes organization metadata.
	ActionEditOrganization
	// ActionManageMembers adds members.
	ActionManageMembers
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionMutateResources:
		return "mutate_resources"
	case ActionEditOrganization:
		return "edit_organization"
	case ActionManageMembers:
		return "manage_members"
	}
	return "unknown"
}

// allows reports whether role may perform the action.
func (a Action) allows(role domain.Role) bool {
	switch a {
	case ActionRead, ActionMutateResources:
		return role.IsValid()
	case ActionEditOrganization:
		return role == domain.RoleOwner || role == domain.RoleAdmin
	case ActionManageMembers:
		return role == domain.RoleOwner
	}
	return false
}

// Repository looks up memberships.
type Repository interface {
	OrganizationExists(ctx context.Context, orgID string) (bool, error)
	GetMemberRole(ctx context.Context, orgID, userID string) (domain.Role, bool, error)
}

// Authority answers membership questions and enforces role gates.
type Authority struct {
	repo Repository
}

// NewAuthority creates a new membership authority.
func NewAuthority(repo Repository) *Authority {
	return &Authority{repo: repo}
}

// RoleOf returns the user's role in the organization. ok is false when the
// user is not a member.
func (a *Authority) RoleOf(ctx context.Context, orgID, userID string) (domain.Role, bool, error) {
	if userID == "" {
		return "", false, nil
	}
	role, ok, err := a.repo.GetMemberRole(ctx, orgID, userID)
	if err != nil {
		return "", false, fmt.Errorf("get member role: %w", err)
	}
	return role, ok, nil
}

// IsMember reports whether the user belongs to the organization.
func (a *Authority) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	_, ok, err := a.RoleOf(ctx, orgID, userID)
	return ok, err
}

// Authorize returns nil if the user may perform the action in the
// organization. Unknown organizations yield ErrOrganizationNotFound; missing
// membership or an insufficient role yield ErrUnauthorized. Lookup errors are
// returned as is and never grant access.
func (a *Authority) Authorize(ctx context.Context, orgID, userID string, action Action) error {
	if userID == "" {
		return ErrUnauthorized
	}

	exists, err := a.repo.OrganizationExists(ctx, orgID)
	if err != nil {
		return fmt.Errorf("check organization: %w", err)
	}
	if !exists {
		return ErrOrganizationNotFound
	}

	role, ok, err := a.RoleOf(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !ok || !action.allows(role) {
		return fmt.Errorf("%w: %s requires a different role", ErrUnauthorized, action)
	}
	return nil
}

// RequireMember authorizes service and incident mutations and private reads.
func (a *Authority) RequireMember(ctx context.Context, orgID, userID string) error {
	return a.Authorize(ctx, orgID, userID, ActionMutateResources)
}

// RequireOrganizationEditor authorizes organization metadata changes.
func (a *Authority) RequireOrganizationEditor(ctx context.Context, orgID, userID string) error {
	return a.Authorize(ctx, orgID, userID, ActionEditOrganization)
}

// RequireOwner authorizes membership management.
func (a *Authority) RequireOwner(ctx context.Context, orgID, userID string) error {
	return a.Authorize(ctx, orgID, userID, ActionManageMembers)
}
