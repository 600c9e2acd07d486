// Package identity defines the contract for identity providers. The
// enrichment and provisioning core depends only on this interface, so the
// local credential backend and Zitadel can be swapped without touching
// business logic.
package identity

import (
	"context"
	"errors"

	"github.com/nexiom/backend/internal/models"
)

var (
	// ErrInvalidCredentials is returned by Login for a wrong email/password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by CreateUser when the email is registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotSupported is returned for operations a backend delegates to its
	// hosted flow (e.g. Zitadel interactive login).
	ErrNotSupported = errors.New("not supported by this identity provider")
)

// CreateUserParams holds the details for registering a new user.
type CreateUserParams struct {
	Email    string
	Password string
	Name     string
}

// LoginResult is a fresh session token plus the authenticated user.
type LoginResult struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
	User    models.User    `json:"user"`
}

// RawSession is a validated session as returned by the provider, before
// tenant enrichment.
type RawSession struct {
	Session models.Session `json:"session"`
	User    models.User    `json:"user"`
}

// Provider is the system of record for credentials and raw session validity.
type Provider interface {
	// CreateUser registers a user. Returns ErrEmailTaken on duplicates.
	CreateUser(ctx context.Context, p CreateUserParams) (*models.User, error)

	// Login verifies credentials and creates a session.
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// ValidateSession resolves a token to its session and user. An invalid,
	// unknown or expired token yields (nil, nil); errors are reserved for
	// infrastructure failures.
	ValidateSession(ctx context.Context, token string) (*RawSession, error)

	// ListUsers returns the users belonging to the given tenant. An empty
	// tenantID returns an empty list rather than every user.
	ListUsers(ctx context.Context, tenantID string) ([]models.UserPublic, error)

	// Logout revokes the session for the given token, if any.
	Logout(ctx context.Context, token string) error
}

// EmailVerifier is an optional capability for providers that manage their own
// email verification tokens. Callers type-assert for it.
type EmailVerifier interface {
	CreateVerificationToken(ctx context.Context, userID string) (string, error)
	VerifyEmail(ctx context.Context, token string) error
}
