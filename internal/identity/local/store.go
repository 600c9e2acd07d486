package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexiom/backend/internal/models"
)

// ErrVerificationNotFound means the verification token is unknown or expired.
var ErrVerificationNotFound = errors.New("verification token not found")

// Storage is the persistence port for the local identity backend.
type Storage interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateAccount(ctx context.Context, userID, passwordHash string) error
	GetPasswordHash(ctx context.Context, userID string) (string, error)
	CreateSession(ctx context.Context, s *models.Session, tokenHash string) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, *models.User, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateVerification(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ConsumeVerification(ctx context.Context, tokenHash string) error
	ListUsersByTenant(ctx context.Context, tenantID string) ([]models.UserPublic, error)
}

// Store implements Storage against PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a local identity store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateUser inserts a user row.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (id, email, name, email_verified, image)
		VALUES ($1, $2, $3, $4, NULLIF($5,''))
		RETURNING created_at, updated_at`
	return s.pool.QueryRow(ctx, q, u.ID, u.Email, u.Name, u.EmailVerified, u.Image).
		Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetUserByEmail returns a user by email, or (nil, nil) when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, name, email_verified, COALESCE(image,''), created_at, updated_at
		FROM users WHERE email = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, email))
}

// GetUserByID returns a user by ID, or (nil, nil) when absent.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const q = `SELECT id, email, name, email_verified, COALESCE(image,''), created_at, updated_at
		FROM users WHERE id = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerified, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateAccount inserts a credential account for the user.
func (s *Store) CreateAccount(ctx context.Context, userID, passwordHash string) error {
	const q = `INSERT INTO accounts (id, user_id, provider_id, password_hash)
		VALUES (gen_random_uuid(), $1, 'credential', $2)`
	_, err := s.pool.Exec(ctx, q, userID, passwordHash)
	return err
}

// GetPasswordHash returns the credential account's password hash.
func (s *Store) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	const q = `SELECT password_hash FROM accounts WHERE user_id = $1 AND provider_id = 'credential'`
	var hash string
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&hash); err != nil {
		return "", err
	}
	return hash, nil
}

// CreateSession inserts a session row keyed by token hash.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session, tokenHash string) error {
	const q = `INSERT INTO sessions (id, user_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6)
		RETURNING created_at`
	return s.pool.QueryRow(ctx, q, sess.ID, sess.UserID, tokenHash, sess.IPAddress, sess.UserAgent, sess.ExpiresAt).
		Scan(&sess.CreatedAt)
}

// GetSessionByTokenHash returns the session and its user, or (nil, nil, nil)
// when the hash is unknown.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, *models.User, error) {
	const q = `SELECT s.id, s.user_id, COALESCE(s.ip_address,''), COALESCE(s.user_agent,''), s.expires_at, s.created_at,
			u.id, u.email, u.name, u.email_verified, COALESCE(u.image,''), u.created_at, u.updated_at
		FROM sessions s
		INNER JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1`
	var sess models.Session
	var u models.User
	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(
		&sess.ID, &sess.UserID, &sess.IPAddress, &sess.UserAgent, &sess.ExpiresAt, &sess.CreatedAt,
		&u.ID, &u.Email, &u.Name, &u.EmailVerified, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session lookup: %w", err)
	}
	return &sess, &u, nil
}

// DeleteSessionByTokenHash removes a session row.
func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

// CreateVerification inserts an email verification token.
func (s *Store) CreateVerification(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const q = `INSERT INTO verifications (id, user_id, token_hash, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3)`
	_, err := s.pool.Exec(ctx, q, userID, tokenHash, expiresAt)
	return err
}

// ConsumeVerification deletes the verification row and marks the user's email
// verified, in one transaction.
func (s *Store) ConsumeVerification(ctx context.Context, tokenHash string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID string
	const del = `DELETE FROM verifications WHERE token_hash = $1 AND expires_at > NOW() RETURNING user_id`
	if err := tx.QueryRow(ctx, del, tokenHash).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVerificationNotFound
		}
		return fmt.Errorf("consume verification: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return tx.Commit(ctx)
}

// ListUsersByTenant returns users who are members of the organization,
// including their membership role.
func (s *Store) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.UserPublic, error) {
	const q = `SELECT u.id, u.email, u.name, COALESCE(u.image,''), m.role, u.created_at
		FROM users u
		INNER JOIN members m ON m.user_id = u.id
		WHERE m.organization_id = $1
		ORDER BY u.name, u.email`
	orgID, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	rows, err := s.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
