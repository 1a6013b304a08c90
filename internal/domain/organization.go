package domain

import "time"

// Role is a member's role inside an organization.
type Role string

// Organization roles.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsValid checks if the role is valid.
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Organization is the tenant boundary. It owns services and incidents.
type Organization struct {
	ID        string       `json:"id"`
	Slug      string       `json:"slug"`
	Name      string       `json:"name"`
	Website   string       `json:"website,omitempty"`
	Logo      string       `json:"logo,omitempty"`
	Members   []Membership `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Membership links a user to an organization with a role.
type Membership struct {
	OrganizationID string    `json:"-"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
