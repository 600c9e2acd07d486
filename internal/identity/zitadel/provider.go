// Package zitadel implements the identity provider against a Zitadel
// instance: session validation via OAuth2 token introspection and user
// management via the management API, authenticated with a service-user JWT
// bearer assertion. Interactive login stays on Zitadel's hosted flow.
package zitadel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/models"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Provider is the Zitadel identity backend.
type Provider struct {
	issuer     string
	tokens     *tokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Zitadel provider from the issuer URL and the service-user
// machine key JSON.
func New(issuer string, serviceUserKey []byte, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := ParseServiceUserKey(serviceUserKey)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}
	tokens, err := newTokenSource(issuer, key, httpClient)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		issuer:     strings.TrimRight(issuer, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
	}
	logger.Info("zitadel provider initialized", zap.String("issuer", p.issuer))
	return p, nil
}

// CreateUser creates a human user through the management API.
func (p *Provider) CreateUser(ctx context.Context, in identity.CreateUserParams) (*models.User, error) {
	first, last := splitName(in.Name)
	payload := map[string]any{
		"profile": map[string]any{
			"firstName":         first,
			"lastName":          last,
			"displayName":       in.Name,
			"preferredLanguage": "en",
		},
		"email": map[string]any{
			"email":      in.Email,
			"isVerified": true,
		},
	}
	if in.Password != "" {
		payload["initialPassword"] = in.Password
	}

	var out struct {
		UserID string `json:"userId"`
	}
	if err := p.call(ctx, http.MethodPost, "/management/v1/users/human", payload, &out); err != nil {
		return nil, fmt.Errorf("create human user: %w", err)
	}

	p.logger.Info("zitadel user created", zap.String("user_id", out.UserID), zap.String("email", in.Email))
	return &models.User{
		ID:            out.UserID,
		Email:         in.Email,
		Name:          in.Name,
		EmailVerified: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil
}

// Login is not supported; users authenticate through Zitadel's hosted flow
// and present the resulting access token.
func (p *Provider) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	return nil, identity.ErrNotSupported
}

// ValidateSession introspects the access token. Inactive, unknown or expired
// tokens yield (nil, nil).
func (p *Provider) ValidateSession(ctx context.Context, token string) (*identity.RawSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	assertion, err := p.tokens.assertion()
	if err != nil {
		return nil, fmt.Errorf("sign assertion: %w", err)
	}
	form := url.Values{
		"token":                 {token},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.issuer+"/oauth/v2/introspect", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspect status: %d", resp.StatusCode)
	}

	var body struct {
		Active   bool   `json:"active"`
		Sub      string `json:"sub"`
		Email    string `json:"email"`
		Verified bool   `json:"email_verified"`
		Name     string `json:"name"`
		JTI      string `json:"jti"`
		Exp      int64  `json:"exp"`
		Iat      int64  `json:"iat"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode introspection: %w", err)
	}
	if !body.Active || body.Sub == "" {
		return nil, nil
	}

	return &identity.RawSession{
		Session: models.Session{
			ID:        body.JTI,
			UserID:    body.Sub,
			Token:     token,
			ExpiresAt: time.Unix(body.Exp, 0),
			CreatedAt: time.Unix(body.Iat, 0),
		},
		User: models.User{
			ID:            body.Sub,
			Email:         body.Email,
			Name:          body.Name,
			EmailVerified: body.Verified,
		},
	}, nil
}

// Logout revokes the token at the IdP.
func (p *Provider) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	assertion, err := p.tokens.assertion()
	if err != nil {
		return fmt.Errorf("sign assertion: %w", err)
	}
	form := url.Values{
		"token":                 {token},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.issuer+"/oauth/v2/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke status: %d", resp.StatusCode)
	}
	return nil
}

// ListUsers searches users through the management API. The service user's
// token is organization-scoped on the Zitadel side, so results are limited to
// its org; an empty tenantID still returns an empty list for parity with the
// local backend.
func (p *Provider) ListUsers(ctx context.Context, tenantID string) ([]models.UserPublic, error) {
	if tenantID == "" {
		p.logger.Warn("list users called without tenant id")
		return []models.UserPublic{}, nil
	}

	var out struct {
		Result []struct {
			ID      string `json:"id"`
			Details struct {
				CreationDate time.Time `json:"creationDate"`
			} `json:"details"`
			Human struct {
				Profile struct {
					DisplayName string `json:"displayName"`
				} `json:"profile"`
				Email struct {
					Email string `json:"email"`
				} `json:"email"`
			} `json:"human"`
		} `json:"result"`
	}
	payload := map[string]any{"query": map[string]any{"limit": 200}}
	if err := p.call(ctx, http.MethodPost, "/management/v1/users/_search", payload, &out); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	list := make([]models.UserPublic, 0, len(out.Result))
	for _, u := range out.Result {
		list = append(list, models.UserPublic{
			ID:        u.ID,
			Email:     u.Human.Email.Email,
			Name:      u.Human.Profile.DisplayName,
			Role:      models.DefaultRole,
			CreatedAt: u.Details.CreationDate,
		})
	}
	return list, nil
}

// call performs an authenticated management API request.
func (p *Provider) call(ctx context.Context, method, path string, payload, out any) error {
	accessToken, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	var body *strings.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(raw))
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, p.issuer+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "New", "User"
	case 1:
		return parts[0], "User"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

var _ identity.Provider = (*Provider)(nil)
