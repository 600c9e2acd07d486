package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/models"
	"github.com/nexiom/backend/internal/sessions"
	"github.com/nexiom/backend/internal/tenants"
	"github.com/nexiom/backend/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProvider is an in-memory identity backend for handler tests.
type fakeProvider struct {
	mu       sync.Mutex
	users    map[string]*models.User // by email
	password map[string]string       // email -> password
	sessions map[string]*identity.RawSession
	nextID   int
	verified map[string]bool // verification token -> consumed
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		users:    map[string]*models.User{},
		password: map[string]string{},
		sessions: map[string]*identity.RawSession{},
		verified: map[string]bool{},
	}
}

func (f *fakeProvider) CreateUser(_ context.Context, p identity.CreateUserParams) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[p.Email]; ok {
		return nil, identity.ErrEmailTaken
	}
	f.nextID++
	u := &models.User{ID: fmt.Sprintf("u%d", f.nextID), Email: p.Email, Name: p.Name}
	f.users[p.Email] = u
	f.password[p.Email] = p.Password
	return u, nil
}

func (f *fakeProvider) Login(_ context.Context, email, password string) (*identity.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || f.password[email] != password {
		return nil, identity.ErrInvalidCredentials
	}
	token := "tok-" + u.ID
	session := models.Session{ID: "s-" + u.ID, UserID: u.ID, Token: token, ExpiresAt: time.Now().Add(time.Hour)}
	f.sessions[token] = &identity.RawSession{Session: session, User: *u}
	return &identity.LoginResult{Token: token, Session: session, User: *u}, nil
}

func (f *fakeProvider) ValidateSession(_ context.Context, token string) (*identity.RawSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := *rs
	return &copied, nil
}

func (f *fakeProvider) ListUsers(context.Context, string) ([]models.UserPublic, error) {
	return []models.UserPublic{}, nil
}

func (f *fakeProvider) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

func (f *fakeProvider) CreateVerificationToken(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "verify-" + userID
	f.verified[token] = false
	return token, nil
}

func (f *fakeProvider) VerifyEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	consumed, ok := f.verified[token]
	if !ok || consumed {
		return identity.ErrInvalidCredentials
	}
	f.verified[token] = true
	return nil
}

var (
	_ identity.Provider      = (*fakeProvider)(nil)
	_ identity.EmailVerifier = (*fakeProvider)(nil)
)

// fakeTenantStore enforces the one-membership-per-user rule in memory.
type fakeTenantStore struct {
	mu          sync.Mutex
	memberships map[string]*models.TenantMembership
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{memberships: map[string]*models.TenantMembership{}}
}

func (f *fakeTenantStore) MembershipForUser(_ context.Context, userID string) (*models.TenantMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberships[userID], nil
}

func (f *fakeTenantStore) CreateOrganizationWithOwner(_ context.Context, org *models.Organization, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.memberships[userID]; ok {
		return tenants.ErrDuplicateMembership
	}
	f.memberships[userID] = &models.TenantMembership{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Role:             role,
	}
	return nil
}

var _ tenants.Store = (*fakeTenantStore)(nil)

// fakeEnqueuer records queued verification emails.
type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.VerificationEmailPayload
}

func (f *fakeEnqueuer) EnqueueVerificationEmail(_ context.Context, p queue.VerificationEmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

type env struct {
	provider *fakeProvider
	store    *fakeTenantStore
	emails   *fakeEnqueuer
	router   *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	provider := newFakeProvider()
	store := newFakeTenantStore()
	emails := &fakeEnqueuer{}
	tenantSvc := tenants.NewService(store, nil)
	enricher := sessions.NewService(provider, store, nil)

	h := NewHandler(provider, enricher, tenantSvc, emails, CookieConfig{
		Name:   "app.session_token",
		MaxAge: 3600,
	}, "http://localhost:8080", nil)

	r := gin.New()
	g := r.Group("/auth")
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.GET("/verify-email", h.VerifyEmail)
	g.POST("/provision-tenant", h.ProvisionTenant)
	g.POST("/refresh-session", h.RefreshSession)

	return &env{provider: provider, store: store, emails: emails, router: r}
}

func (e *env) post(t *testing.T, path string, body interface{}, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestSignup_WithCompanyProvisionsTenant(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/auth/signup", SignupRequest{
		Email:       "founder@acme.com",
		Password:    "secret1",
		Name:        "Founder",
		CompanyName: "Acme Corp",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	user := e.provider.users["founder@acme.com"]
	require.NotNil(t, user)
	m, err := e.store.MembershipForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "Acme Corp", m.OrganizationName)
	require.Equal(t, models.OrgRoleAdmin, m.Role)

	require.Len(t, e.emails.payloads, 1)
	require.Equal(t, "founder@acme.com", e.emails.payloads[0].Recipient)
	require.Contains(t, e.emails.payloads[0].VerifyURL, "/auth/verify-email?token=")
}

func TestSignup_WithoutCompanySkipsProvisioning(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/auth/signup", SignupRequest{
		Email:    "solo@example.com",
		Password: "secret1",
		Name:     "Solo",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	user := e.provider.users["solo@example.com"]
	m, err := e.store.MembershipForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	e := newEnv(t)

	req := SignupRequest{Email: "a@example.com", Password: "secret1", Name: "A"}
	require.Equal(t, http.StatusCreated, e.post(t, "/auth/signup", req).Code)
	require.Equal(t, http.StatusBadRequest, e.post(t, "/auth/signup", req).Code)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	e := newEnv(t)
	e.post(t, "/auth/signup", SignupRequest{Email: "a@example.com", Password: "secret1", Name: "A"})

	w := e.post(t, "/auth/login", LoginRequest{Email: "a@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "app.session_token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newEnv(t)
	e.post(t, "/auth/signup", SignupRequest{Email: "a@example.com", Password: "secret1", Name: "A"})

	w := e.post(t, "/auth/login", LoginRequest{Email: "a@example.com", Password: "nope99"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProvisionTenant_IdempotentPerUser(t *testing.T) {
	e := newEnv(t)
	e.post(t, "/auth/signup", SignupRequest{Email: "a@example.com", Password: "secret1", Name: "A"})
	login := e.post(t, "/auth/login", LoginRequest{Email: "a@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, login.Code)
	token := "tok-" + e.provider.users["a@example.com"].ID

	w := e.post(t, "/auth/provision-tenant", nil, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	var first struct {
		Data tenants.ProvisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.False(t, first.Data.AlreadyProvisioned)
	require.NotEmpty(t, first.Data.Slug)

	w = e.post(t, "/auth/provision-tenant", nil, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		Data tenants.ProvisionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	require.True(t, second.Data.AlreadyProvisioned)
	require.NotContains(t, w.Body.String(), "org_id")
}

func TestProvisionTenant_RequiresSession(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusUnauthorized, e.post(t, "/auth/provision-tenant", nil).Code)
	require.Equal(t, http.StatusUnauthorized,
		e.post(t, "/auth/provision-tenant", nil, withBearer("forged")).Code)
}

func TestRefreshSession_ReturnsTenantContext(t *testing.T) {
	e := newEnv(t)
	e.post(t, "/auth/signup", SignupRequest{
		Email: "a@example.com", Password: "secret1", Name: "A", CompanyName: "Acme",
	})
	e.post(t, "/auth/login", LoginRequest{Email: "a@example.com", Password: "secret1"})
	token := "tok-" + e.provider.users["a@example.com"].ID

	w := e.post(t, "/auth/refresh-session", nil, withBearer(token))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.EnrichedSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Data.User.HasTenant)
	require.NotNil(t, resp.Data.User.Tenant)
	require.Equal(t, "Acme", resp.Data.User.Tenant.OrganizationName)
	require.Equal(t, models.OrgRoleAdmin, resp.Data.User.Role)
}

func TestRefreshSession_InvalidToken(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusUnauthorized, e.post(t, "/auth/refresh-session", nil).Code)
	require.Equal(t, http.StatusUnauthorized,
		e.post(t, "/auth/refresh-session", nil, withBearer("forged")).Code)
}

func TestVerifyEmail(t *testing.T) {
	e := newEnv(t)
	e.post(t, "/auth/signup", SignupRequest{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.Len(t, e.emails.payloads, 1)

	userID := e.provider.users["a@example.com"].ID
	token := "verify-" + userID

	req := httptest.NewRequest(http.MethodGet, "/auth/verify-email?token="+token, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// consumed tokens are rejected
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// missing token
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/verify-email", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
