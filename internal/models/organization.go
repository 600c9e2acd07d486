package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership roles within an organization.
const (
	OrgRoleAdmin  = "admin"
	OrgRoleOwner  = "owner"
	OrgRoleMember = "member"
)

// DefaultRole is reported for authenticated users with no membership.
const DefaultRole = "user"

// Member links a user to an organization with a role. At most one membership
// per user exists; the members table enforces this with a unique constraint.
type Member struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// TenantMembership is the joined membership + organization row consumed by
// session enrichment.
type TenantMembership struct {
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	Role             string    `json:"role"`
}
