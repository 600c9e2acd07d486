// Package auth exposes the authentication HTTP surface: signup, login,
// logout, email verification, tenant provisioning and session refresh.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/middleware"
	"github.com/nexiom/backend/internal/models"
	"github.com/nexiom/backend/internal/sessions"
	"github.com/nexiom/backend/internal/tenants"
	"github.com/nexiom/backend/pkg/queue"
	"github.com/nexiom/backend/pkg/response"
)

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CookieConfig controls the session cookie the login endpoint sets.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge int // seconds
}

// Enqueuer queues verification emails for the worker.
type Enqueuer interface {
	EnqueueVerificationEmail(ctx context.Context, payload queue.VerificationEmailPayload) error
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	provider identity.Provider
	enricher *sessions.Service
	tenants  *tenants.Service
	emails   Enqueuer // nil disables verification emails
	cookie   CookieConfig
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(provider identity.Provider, enricher *sessions.Service, tenantSvc *tenants.Service, emails Enqueuer, cookie CookieConfig, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		provider: provider,
		enricher: enricher,
		tenants:  tenantSvc,
		emails:   emails,
		cookie:   cookie,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// Signup handles POST /auth/signup. With a company name the new user gets an
// organization and admin membership immediately; without one, provisioning
// happens later through /auth/provision-tenant.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.provider.CreateUser(c.Request.Context(), identity.CreateUserParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if errors.Is(err, identity.ErrEmailTaken) {
		response.BadRequest(c, "email already registered")
		return
	}
	if err != nil {
		h.logger.Error("signup failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	if req.CompanyName != "" {
		if _, err := h.tenants.Provision(c.Request.Context(), user.ID, req.CompanyName); err != nil {
			response.Internal(c, "failed to create organization")
			return
		}
	}

	h.sendVerificationEmail(c.Request.Context(), user)
	response.Created(c, user)
}

// sendVerificationEmail issues a token and queues the email, when both the
// provider and the queue support it. Failures are logged, not surfaced: the
// account exists either way and verification can be re-sent.
func (h *Handler) sendVerificationEmail(ctx context.Context, user *models.User) {
	verifier, ok := h.provider.(identity.EmailVerifier)
	if !ok || h.emails == nil {
		return
	}
	token, err := verifier.CreateVerificationToken(ctx, user.ID)
	if err != nil {
		h.logger.Error("create verification token", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	err = h.emails.EnqueueVerificationEmail(ctx, queue.VerificationEmailPayload{
		UserID:    user.ID,
		Recipient: user.Email,
		Name:      user.Name,
		VerifyURL: h.baseURL + "/auth/verify-email?token=" + token,
	})
	if err != nil {
		h.logger.Error("enqueue verification email", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Login handles POST /auth/login. Sets the session cookie and returns the
// token for bearer clients.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.provider.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if errors.Is(err, identity.ErrNotSupported) {
		response.BadRequest(c, "password login is handled by the identity provider's hosted flow")
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, result.Token, h.cookie.MaxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
	response.OK(c, result)
}

// Logout handles POST /auth/logout. Revokes the session and clears the
// cookie.
func (h *Handler) Logout(c *gin.Context) {
	token := middleware.ExtractToken(c, h.cookie.Name)
	if token != "" {
		if err := h.provider.Logout(c.Request.Context(), token); err != nil {
			h.logger.Warn("logout", zap.Error(err))
		}
	}
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
	response.NoContent(c)
}

// ProvisionTenant handles POST /auth/provision-tenant. Called by the console
// when an authenticated user (e.g. after social login) has no organization
// yet. Idempotent: an existing membership is a successful no-op.
func (h *Handler) ProvisionTenant(c *gin.Context) {
	token := middleware.ExtractToken(c, h.cookie.Name)
	if token == "" {
		response.Unauthorized(c, "no session token provided")
		return
	}

	raw, err := h.provider.ValidateSession(c.Request.Context(), token)
	if err != nil {
		response.Internal(c, "session validation failed")
		return
	}
	if raw == nil {
		response.Unauthorized(c, "no session found")
		return
	}

	result, err := h.tenants.Provision(c.Request.Context(), raw.User.ID, "")
	if err != nil {
		response.Internal(c, "tenant provisioning failed")
		return
	}
	response.OK(c, result)
}

// RefreshSession handles POST /auth/refresh-session. Returns the session
// with organization data attached, or 401.
func (h *Handler) RefreshSession(c *gin.Context) {
	token := middleware.ExtractToken(c, h.cookie.Name)
	if token == "" {
		response.Unauthorized(c, "no session token provided")
		return
	}

	enriched, err := h.enricher.Enrich(c.Request.Context(), token)
	if err != nil {
		response.Internal(c, "session validation failed")
		return
	}
	if enriched == nil {
		response.Unauthorized(c, "invalid session")
		return
	}
	response.OK(c, enriched)
}

// VerifyEmail handles GET /auth/verify-email?token=.
func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "token required")
		return
	}
	verifier, ok := h.provider.(identity.EmailVerifier)
	if !ok {
		response.BadRequest(c, "email verification is handled by the identity provider")
		return
	}
	if err := verifier.VerifyEmail(c.Request.Context(), token); err != nil {
		response.BadRequest(c, "invalid or expired verification token")
		return
	}
	response.OK(c, gin.H{"verified": true})
}
