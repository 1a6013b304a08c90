package organizations

import (
	"context"

	"github.com/bissquit/orgstatus/internal/domain"
)

// Repository defines the interface for organization data operations.
type Repository interface {
	// CreateOrganization inserts the organization and its owner membership
	// in one transaction. Duplicate slugs yield ErrSlugExists.
	CreateOrganization(ctx context.Context, org *domain.Organization, ownerID string) error
	GetOrganizationByID(ctx context.Context, id string) (*domain.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	GetFirstOrganization(ctx context.Context) (*domain.Organization, error)
	ListOrganizationsByUser(ctx context.Context, userID string) ([]domain.Organization, error)
	UpdateOrganization(ctx context.Context, org *domain.Organization) error

	// AddMemberByEmail adds the user with the given email. Unknown emails
	// yield ErrUserNotFound, existing members ErrAlreadyMember.
	AddMemberByEmail(ctx context.Context, orgID, email string, role domain.Role) error
}
