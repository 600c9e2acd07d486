package local

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, hash, err := GenerateToken()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	require.Len(t, raw, tokenBytes)

	require.Equal(t, HashToken(token), hash)
	require.Len(t, hash, 64)

	other, _, err := GenerateToken()
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bearer form", "abc123", "abc123"},
		{"signed cookie form", "abc123.c2lnbmF0dXJl", "abc123"},
		{"only first dot splits", "abc.def.ghi", "abc"},
		{"surrounding whitespace", "  abc123  ", "abc123"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeToken(tt.in))
		})
	}
}
