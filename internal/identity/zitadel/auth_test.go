package zitadel

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	return string(pem.EncodeToMemory(block)), priv
}

func TestParseServiceUserKey(t *testing.T) {
	raw, err := json.Marshal(ServiceUserKey{
		Type: "serviceaccount", KeyID: "k1", Key: "pem", UserID: "1234",
	})
	require.NoError(t, err)

	key, err := ParseServiceUserKey(raw)
	require.NoError(t, err)
	require.Equal(t, "1234", key.UserID)
	require.Equal(t, "k1", key.KeyID)

	_, err = ParseServiceUserKey([]byte(`{"type":"serviceaccount"}`))
	require.Error(t, err)

	_, err = ParseServiceUserKey([]byte(`not json`))
	require.Error(t, err)
}

func TestAssertionClaims(t *testing.T) {
	pemKey, priv := testKeyPEM(t)
	ts, err := newTokenSource("https://auth.example.com/", &ServiceUserKey{
		KeyID: "k1", Key: pemKey, UserID: "svc-1",
	}, http.DefaultClient)
	require.NoError(t, err)

	signed, err := ts.assertion()
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (interface{}, error) {
		require.Equal(t, jwt.SigningMethodRS256.Alg(), tok.Method.Alg())
		require.Equal(t, "k1", tok.Header["kid"])
		return &priv.PublicKey, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	require.Equal(t, "svc-1", claims.Issuer)
	require.Equal(t, "svc-1", claims.Subject)
	// trailing slash in the issuer URL is trimmed for the audience
	require.Equal(t, jwt.ClaimStrings{"https://auth.example.com"}, claims.Audience)
	require.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}
