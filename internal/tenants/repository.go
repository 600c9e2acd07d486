package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexiom/backend/internal/models"
)

var (
	// ErrDuplicateMembership means the user already holds a membership row.
	// Raised by the unique index on members.user_id.
	ErrDuplicateMembership = errors.New("user already has a membership")
	// ErrDuplicateSlug means the generated slug is already taken.
	ErrDuplicateSlug = errors.New("organization slug already exists")
)

// Store is the persistence port for tenant provisioning and enrichment.
type Store interface {
	// MembershipForUser returns the user's membership joined with its
	// organization, or (nil, nil) when the user has none.
	MembershipForUser(ctx context.Context, userID string) (*models.TenantMembership, error)

	// CreateOrganizationWithOwner inserts the organization and an owning
	// membership in one transaction. Returns ErrDuplicateMembership or
	// ErrDuplicateSlug on the corresponding unique violations.
	CreateOrganizationWithOwner(ctx context.Context, org *models.Organization, userID, role string) error
}

// Repository implements Store against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MembershipForUser returns at most one membership with organization details.
func (r *Repository) MembershipForUser(ctx context.Context, userID string) (*models.TenantMembership, error) {
	const q = `SELECT o.id, o.name, m.role
		FROM members m
		INNER JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		LIMIT 1`
	var tm models.TenantMembership
	err := r.pool.QueryRow(ctx, q, userID).Scan(&tm.OrganizationID, &tm.OrganizationName, &tm.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("membership lookup: %w", err)
	}
	return &tm, nil
}

// CreateOrganizationWithOwner inserts the organization row and the owning
// membership atomically, so a failure between the two cannot leave an orphan
// organization.
func (r *Repository) CreateOrganizationWithOwner(ctx context.Context, org *models.Organization, userID, role string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertOrg = `INSERT INTO organizations (id, name, slug)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	if err := tx.QueryRow(ctx, insertOrg, org.ID, org.Name, org.Slug).Scan(&org.CreatedAt); err != nil {
		return classifyUniqueViolation(err)
	}

	const insertMember = `INSERT INTO members (id, organization_id, user_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	if _, err := tx.Exec(ctx, insertMember, org.ID, userID, role); err != nil {
		return classifyUniqueViolation(err)
	}

	return tx.Commit(ctx)
}

// classifyUniqueViolation maps PostgreSQL unique violations (23505) to the
// package sentinels by constraint name.
func classifyUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "members_user_id_key":
			return ErrDuplicateMembership
		case "organizations_slug_key":
			return ErrDuplicateSlug
		}
	}
	return fmt.Errorf("insert: %w", err)
}
