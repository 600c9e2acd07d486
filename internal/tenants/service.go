// Package tenants implements tenant provisioning: every authenticated user
// ends up with exactly one organization membership, including users who
// arrived through social login with no company name.
package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexiom/backend/internal/models"
)

// ProvisionResult reports either the created organization or that the user
// already had one. AlreadyProvisioned is a successful no-op, not an error.
type ProvisionResult struct {
	AlreadyProvisioned bool       `json:"already_provisioned,omitempty"`
	OrgID              *uuid.UUID `json:"org_id,omitempty"`
	Name               string     `json:"name,omitempty"`
	Slug               string     `json:"slug,omitempty"`
}

// Service provisions tenants.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a tenant provisioning service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Provision idempotently creates an organization and an admin membership for
// the user. The caller must have authenticated the user already. Concurrent
// calls for the same user are safe: the unique index on members.user_id makes
// the membership insert the decider, and the loser reports AlreadyProvisioned.
func (s *Service) Provision(ctx context.Context, userID, name string) (*ProvisionResult, error) {
	existing, err := s.store.MembershipForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Warn("user already has a tenant", zap.String("user_id", userID))
		return &ProvisionResult{AlreadyProvisioned: true}, nil
	}

	if name == "" {
		name = "Organization " + RandomSuffix(8)
	}

	for attempt := 0; ; attempt++ {
		org := &models.Organization{
			ID:   uuid.New(),
			Name: name,
			Slug: Slugify(name),
		}
		err := s.store.CreateOrganizationWithOwner(ctx, org, userID, models.OrgRoleAdmin)
		switch {
		case err == nil:
			s.logger.Info("tenant provisioned",
				zap.String("user_id", userID),
				zap.String("org_id", org.ID.String()),
				zap.String("slug", org.Slug))
			return &ProvisionResult{OrgID: &org.ID, Name: org.Name, Slug: org.Slug}, nil
		case errors.Is(err, ErrDuplicateMembership):
			// Lost a race with a concurrent provision for the same user.
			return &ProvisionResult{AlreadyProvisioned: true}, nil
		case errors.Is(err, ErrDuplicateSlug) && attempt == 0:
			// Regenerate the random suffix once before giving up.
			continue
		default:
			s.logger.Error("tenant provisioning failed", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
	}
}

// MembershipForUser exposes the store lookup for callers that only need the
// membership (e.g. tenant-scoped handlers).
func (s *Service) MembershipForUser(ctx context.Context, userID string) (*models.TenantMembership, error) {
	return s.store.MembershipForUser(ctx, userID)
}
