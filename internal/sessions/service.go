// Package sessions turns opaque tokens into fully-qualified principals:
// a validated session plus the user's tenant context.
package sessions

import (
	"context"

	"go.uber.org/zap"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/models"
)

// MembershipLookup is the slice of the tenant store the enricher needs.
type MembershipLookup interface {
	MembershipForUser(ctx context.Context, userID string) (*models.TenantMembership, error)
}

// Service enriches sessions. It depends only on the identity.Provider
// interface and a membership lookup; it holds no state between calls.
type Service struct {
	provider    identity.Provider
	memberships MembershipLookup
	logger      *zap.Logger
}

// NewService creates a session enrichment service.
func NewService(provider identity.Provider, memberships MembershipLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, memberships: memberships, logger: logger}
}

// Enrich resolves a token to an enriched session. A token that fails provider
// validation yields (nil, nil); no membership lookup happens in that case.
// Read-only, no side effects.
func (s *Service) Enrich(ctx context.Context, token string) (*models.EnrichedSession, error) {
	raw, err := s.provider.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	membership, err := s.memberships.MembershipForUser(ctx, raw.User.ID)
	if err != nil {
		return nil, err
	}

	enriched := &models.EnrichedSession{
		Session: raw.Session,
		User: models.EnrichedUser{
			User: raw.User,
			Role: models.DefaultRole,
		},
	}
	if membership != nil {
		enriched.User.HasTenant = true
		enriched.User.Role = membership.Role
		enriched.User.Tenant = &models.TenantContext{
			OrganizationID:   membership.OrganizationID.String(),
			OrganizationName: membership.OrganizationName,
		}
	}

	s.logger.Debug("session enriched",
		zap.String("user_id", raw.User.ID),
		zap.Bool("has_tenant", enriched.User.HasTenant))
	return enriched, nil
}
