package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/models"
)

// memStore is an in-memory Storage for provider tests.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*models.User // by id
	byEmail       map[string]string       // email -> id
	passwords     map[string]string       // user id -> bcrypt hash
	sessions      map[string]*models.Session
	sessionOwner  map[string]string // token hash -> user id
	verifications map[string]string // token hash -> user id
	deletes       int
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*models.User{},
		byEmail:       map[string]string{},
		passwords:     map[string]string{},
		sessions:      map[string]*models.Session{},
		sessionOwner:  map[string]string{},
		verifications: map[string]string{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	copied := *m.users[id]
	return &copied, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *memStore) CreateAccount(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[userID] = passwordHash
	return nil
}

func (m *memStore) GetPasswordHash(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[userID], nil
}

func (m *memStore) CreateSession(_ context.Context, s *models.Session, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	m.sessions[tokenHash] = s
	m.sessionOwner[tokenHash] = s.UserID
	return nil
}

func (m *memStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (*models.Session, *models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenHash]
	if !ok {
		return nil, nil, nil
	}
	sc := *s
	uc := *m.users[s.UserID]
	return &sc, &uc, nil
}

func (m *memStore) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	delete(m.sessionOwner, tokenHash)
	m.deletes++
	return nil
}

func (m *memStore) CreateVerification(_ context.Context, userID, tokenHash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[tokenHash] = userID
	return nil
}

func (m *memStore) ConsumeVerification(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.verifications[tokenHash]
	if !ok {
		return ErrVerificationNotFound
	}
	delete(m.verifications, tokenHash)
	m.users[userID].EmailVerified = true
	return nil
}

func (m *memStore) ListUsersByTenant(_ context.Context, _ string) ([]models.UserPublic, error) {
	return []models.UserPublic{}, nil
}

var _ Storage = (*memStore)(nil)

func newTestProvider(store Storage, ttl time.Duration) *Provider {
	return New(store, nil, ttl, nil)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	p := newTestProvider(newMemStore(), time.Hour)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)

	_, err = p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "other99", Name: "A2"})
	require.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestLogin_WrongPassword(t *testing.T) {
	p := newTestProvider(newMemStore(), time.Hour)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)

	_, err = p.Login(ctx, "a@example.com", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = p.Login(ctx, "nobody@example.com", "secret1")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestLoginThenValidateSession(t *testing.T) {
	p := newTestProvider(newMemStore(), time.Hour)
	ctx := context.Background()

	user, err := p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)

	login, err := p.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
	require.Equal(t, user.ID, login.Session.UserID)

	rs, err := p.ValidateSession(ctx, login.Token)
	require.NoError(t, err)
	require.NotNil(t, rs)
	require.Equal(t, user.ID, rs.User.ID)
	require.Equal(t, login.Token, rs.Session.Token)

	// signed cookie form resolves to the same session
	rs, err = p.ValidateSession(ctx, login.Token+".c2lnbmF0dXJl")
	require.NoError(t, err)
	require.NotNil(t, rs)
	require.Equal(t, user.ID, rs.User.ID)
}

func TestValidateSession_UnknownToken(t *testing.T) {
	p := newTestProvider(newMemStore(), time.Hour)

	rs, err := p.ValidateSession(context.Background(), "never-issued")
	require.NoError(t, err)
	require.Nil(t, rs)

	rs, err = p.ValidateSession(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, rs)
}

func TestValidateSession_ExpiredTokenDeleted(t *testing.T) {
	store := newMemStore()
	p := newTestProvider(store, -time.Minute) // sessions born expired
	ctx := context.Background()

	_, err := p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)
	login, err := p.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	rs, err := p.ValidateSession(ctx, login.Token)
	require.NoError(t, err)
	require.Nil(t, rs)
	require.Equal(t, 1, store.deletes)
}

func TestLogout_RevokesSession(t *testing.T) {
	p := newTestProvider(newMemStore(), time.Hour)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)
	login, err := p.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.Logout(ctx, login.Token))

	rs, err := p.ValidateSession(ctx, login.Token)
	require.NoError(t, err)
	require.Nil(t, rs)
}

func TestVerifyEmail_RoundTrip(t *testing.T) {
	store := newMemStore()
	p := newTestProvider(store, time.Hour)
	ctx := context.Background()

	user, err := p.CreateUser(ctx, identity.CreateUserParams{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)
	require.False(t, user.EmailVerified)

	token, err := p.CreateVerificationToken(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, p.VerifyEmail(ctx, token))

	refreshed, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, refreshed.EmailVerified)

	// a consumed token cannot be replayed
	require.ErrorIs(t, p.VerifyEmail(ctx, token), ErrVerificationNotFound)
}

func TestListUsers_EmptyTenant(t *testing.T) {
	p := newTestProvider(newMemStore(), time.Hour)

	users, err := p.ListUsers(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, users)
}
