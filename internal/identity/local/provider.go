// Package local implements the identity provider against our own Postgres
// schema: bcrypt credential accounts and opaque session tokens stored hashed,
// with an optional Redis cache in front of the session table.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/models"
	"github.com/nexiom/backend/pkg/utils"
)

const verificationTTL = 24 * time.Hour

// Provider is the local credential/session identity backend.
type Provider struct {
	store      Storage
	cache      *SessionCache // nil disables caching
	sessionTTL time.Duration
	logger     *zap.Logger
}

// New creates a local identity provider.
func New(store Storage, cache *SessionCache, sessionTTL time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Provider{store: store, cache: cache, sessionTTL: sessionTTL, logger: logger}
}

// CreateUser registers a user with a bcrypt-hashed credential account.
func (p *Provider) CreateUser(ctx context.Context, in identity.CreateUserParams) (*models.User, error) {
	existing, err := p.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, identity.ErrEmailTaken
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:    uuid.New().String(),
		Email: in.Email,
		Name:  in.Name,
	}
	if err := p.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := p.store.CreateAccount(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	p.logger.Info("user created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// Login verifies credentials and opens a session.
func (p *Provider) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	user, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, identity.ErrInvalidCredentials
	}
	hash, err := p.store.GetPasswordHash(ctx, user.ID)
	if err != nil {
		return nil, identity.ErrInvalidCredentials
	}
	if !utils.CheckPassword(password, hash) {
		return nil, identity.ErrInvalidCredentials
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(p.sessionTTL),
	}
	if err := p.store.CreateSession(ctx, session, tokenHash); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Token = token

	return &identity.LoginResult{Token: token, Session: *session, User: *user}, nil
}

// ValidateSession resolves a token to its session and user. The token is
// accepted in bearer or cookie form; unknown or expired tokens yield
// (nil, nil).
func (p *Provider) ValidateSession(ctx context.Context, token string) (*identity.RawSession, error) {
	token = NormalizeToken(token)
	if token == "" {
		return nil, nil
	}
	tokenHash := HashToken(token)

	if p.cache != nil {
		if rs := p.cache.Get(ctx, tokenHash); rs != nil {
			if time.Now().Before(rs.Session.ExpiresAt) {
				rs.Session.Token = token
				return rs, nil
			}
			p.cache.Delete(ctx, tokenHash)
		}
	}

	session, user, err := p.store.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		_ = p.store.DeleteSessionByTokenHash(ctx, tokenHash)
		return nil, nil
	}

	rs := &identity.RawSession{Session: *session, User: *user}
	if p.cache != nil {
		p.cache.Set(ctx, tokenHash, rs)
	}
	rs.Session.Token = token
	return rs, nil
}

// Logout revokes the session for the token, if one exists.
func (p *Provider) Logout(ctx context.Context, token string) error {
	token = NormalizeToken(token)
	if token == "" {
		return nil
	}
	tokenHash := HashToken(token)
	if p.cache != nil {
		p.cache.Delete(ctx, tokenHash)
	}
	return p.store.DeleteSessionByTokenHash(ctx, tokenHash)
}

// ListUsers returns the tenant's users. Without a tenant ID it returns an
// empty list rather than leaking the whole user table.
func (p *Provider) ListUsers(ctx context.Context, tenantID string) ([]models.UserPublic, error) {
	if tenantID == "" {
		p.logger.Warn("list users called without tenant id")
		return []models.UserPublic{}, nil
	}
	return p.store.ListUsersByTenant(ctx, tenantID)
}

// CreateVerificationToken issues an email verification token for the user.
func (p *Provider) CreateVerificationToken(ctx context.Context, userID string) (string, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := p.store.CreateVerification(ctx, userID, tokenHash, time.Now().Add(verificationTTL)); err != nil {
		return "", fmt.Errorf("store verification: %w", err)
	}
	return token, nil
}

// VerifyEmail consumes a verification token and marks the email verified.
func (p *Provider) VerifyEmail(ctx context.Context, token string) error {
	return p.store.ConsumeVerification(ctx, HashToken(NormalizeToken(token)))
}

var _ identity.Provider = (*Provider)(nil)
var _ identity.EmailVerifier = (*Provider)(nil)
