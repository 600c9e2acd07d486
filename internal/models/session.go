package models

import (
	"time"
)

// Session is an authenticated session as reported by the identity provider.
// The core never mutates sessions; Token carries the opaque value the client
// presented.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantContext carries the organization fields of an enriched user. All
// fields are populated together; a nil TenantContext means no membership.
type TenantContext struct {
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
}

// EnrichedUser is a user merged with tenant context for authorization
// decisions. Tenant is non-nil exactly when HasTenant is true; Role is the
// membership role, or DefaultRole when there is none.
type EnrichedUser struct {
	User
	HasTenant bool           `json:"has_tenant"`
	Tenant    *TenantContext `json:"tenant,omitempty"`
	Role      string         `json:"role"`
}

// EnrichedSession is the result of resolving a token: the validated session
// plus the enriched user. Constructed fresh per request, never persisted.
type EnrichedSession struct {
	Session Session      `json:"session"`
	User    EnrichedUser `json:"user"`
}
