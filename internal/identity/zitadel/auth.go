package zitadel

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceUserKey is the machine key JSON issued by Zitadel for a service
// user (the ZITADEL_SERVICE_USER_JSON document).
type ServiceUserKey struct {
	Type   string `json:"type"`
	KeyID  string `json:"keyId"`
	Key    string `json:"key"`
	UserID string `json:"userId"`
}

// ParseServiceUserKey parses the machine key JSON.
func ParseServiceUserKey(raw []byte) (*ServiceUserKey, error) {
	var k ServiceUserKey
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("parse service user key: %w", err)
	}
	if k.UserID == "" || k.KeyID == "" || k.Key == "" {
		return nil, fmt.Errorf("service user key missing userId, keyId or key")
	}
	return &k, nil
}

// tokenSource exchanges a signed JWT bearer assertion for an API access
// token and caches it until shortly before expiry.
type tokenSource struct {
	issuer     string
	key        *ServiceUserKey
	privateKey *rsa.PrivateKey
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(issuer string, key *ServiceUserKey, httpClient *http.Client) (*tokenSource, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.Key))
	if err != nil {
		return nil, fmt.Errorf("parse service user private key: %w", err)
	}
	return &tokenSource{
		issuer:     strings.TrimRight(issuer, "/"),
		key:        key,
		privateKey: privateKey,
		httpClient: httpClient,
	}, nil
}

// assertion signs a JWT bearer assertion for the service user, audience'd to
// the issuer, valid for one hour.
func (ts *tokenSource) assertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    ts.key.UserID,
		Subject:   ts.key.UserID,
		Audience:  jwt.ClaimStrings{ts.issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ts.key.KeyID
	return token.SignedString(ts.privateKey)
}

// AccessToken returns a valid API access token, exchanging a fresh assertion
// when the cached one is near expiry.
func (ts *tokenSource) AccessToken(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Now().Before(ts.expires.Add(-time.Minute)) {
		return ts.token, nil
	}

	assertion, err := ts.assertion()
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
		"scope":      {"openid urn:zitadel:iam:org:project:id:zitadel:aud"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.issuer+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange status: %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	ts.token = body.AccessToken
	ts.expires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return ts.token, nil
}
