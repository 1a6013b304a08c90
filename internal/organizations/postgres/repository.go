// Package postgres provides PostgreSQL implementation of the organizations
// and membership repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/bissquit/orgstatus/internal/organizations"
	pgutil "github.com/bissquit/orgstatus/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements organizations.Repository and membership.Repository.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const organizationColumns = `id, slug, name, website, logo, created_at, updated_at`

// CreateOrganization inserts the organization and its owner.
func (r *Repository) CreateOrganization(ctx context.Context, org *domain.Organization, ownerID string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO organizations (slug, name, website, logo)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRow(ctx, query, org.Slug, org.Name, org.Website, org.Logo).
			Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt); err != nil {
			if pgutil.IsUniqueViolation(err) {
				return organizations.ErrSlugExists
			}
			return fmt.Errorf("insert organization: %w", err)
		}

		owner := domain.Membership{
			OrganizationID: org.ID,
			UserID:         ownerID,
			Role:           domain.RoleOwner,
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO organization_members (organization_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`, owner.OrganizationID, owner.UserID, owner.Role).Scan(&owner.CreatedAt); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}

		members, err := listMembers(ctx, tx, org.ID)
		if err != nil {
			return err
		}
		org.Members = members
		return nil
	})
	return err
}

// GetOrganizationByID retrieves an organization with its members.
func (r *Repository) GetOrganizationByID(ctx context.Context, id string) (*domain.Organization, error) {
	org, err := r.getOrganization(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	members, err := listMembers(ctx, r.db, org.ID)
	if err != nil {
		return nil, err
	}
	org.Members = members

	return org, nil
}

// GetOrganizationBySlug retrieves an organization by slug, without members.
func (r *Repository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return r.getOrganization(ctx, `WHERE slug = $1`, slug)
}

// GetFirstOrganization retrieves the oldest organization.
func (r *Repository) GetFirstOrganization(ctx context.Context) (*domain.Organization, error) {
	return r.getOrganization(ctx, `ORDER BY created_at, id LIMIT 1`)
}

func (r *Repository) getOrganization(ctx context.Context, clause string, args ...any) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ` + clause

	var org domain.Organization
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&org.ID,
		&org.Slug,
		&org.Name,
		&org.Website,
		&org.Logo,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, organizations.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	org.Members = make([]domain.Membership, 0)

	return &org, nil
}

// ListOrganizationsByUser retrieves organizations the user belongs to,
// oldest first, without members.
func (r *Repository) ListOrganizationsByUser(ctx context.Context, userID string) ([]domain.Organization, error) {
	query := `
		SELECT o.id, o.slug, o.name, o.website, o.logo, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.created_at, o.id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]domain.Organization, 0)
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(
			&org.ID,
			&org.Slug,
			&org.Name,
			&org.Website,
			&org.Logo,
			&org.CreatedAt,
			&org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		org.Members = make([]domain.Membership, 0)
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organizations: %w", err)
	}

	return orgs, nil
}

// UpdateOrganization writes organization metadata.
func (r *Repository) UpdateOrganization(ctx context.Context, org *domain.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, website = $3, logo = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.db.QueryRow(ctx, query, org.ID, org.Name, org.Website, org.Logo).Scan(&org.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organizations.ErrOrganizationNotFound
		}
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

// AddMemberByEmail adds the user with the given email to the organization.
func (r *Repository) AddMemberByEmail(ctx context.Context, orgID, email string, role domain.Role) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role)
		SELECT $1, id, $3 FROM users WHERE LOWER(email) = LOWER($2)
	`
	result, err := r.db.Exec(ctx, query, orgID, email, role)
	if err != nil {
		if pgutil.IsUniqueViolation(err) {
			return organizations.ErrAlreadyMember
		}
		if pgutil.IsForeignKeyViolation(err) {
			return organizations.ErrOrganizationNotFound
		}
		return fmt.Errorf("add member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return organizations.ErrUserNotFound
	}
	return nil
}

// OrganizationExists reports whether the organization exists.
func (r *Repository) OrganizationExists(ctx context.Context, orgID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, orgID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check organization exists: %w", err)
	}
	return exists, nil
}

// GetMemberRole returns the user's role in the organization.
func (r *Repository) GetMemberRole(ctx context.Context, orgID, userID string) (domain.Role, bool, error) {
	var role domain.Role
	err := r.db.QueryRow(ctx,
		`SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get member role: %w", err)
	}
	return role, true, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMembers(ctx context.Context, q rowQuerier, orgID string) ([]domain.Membership, error) {
	query := `
		SELECT m.organization_id, m.user_id, u.name, u.email, m.role, m.created_at
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at, u.id
	`
	rows, err := q.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]domain.Membership, 0)
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}
