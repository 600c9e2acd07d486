package tenants

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	invalidRe    = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify lowercases the name, collapses whitespace runs to hyphens, strips
// everything outside [a-z0-9-] and appends a 4-char random suffix. Uniqueness
// is best effort; the slug column's unique constraint catches collisions.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = invalidRe.ReplaceAllString(s, "")
	return s + "-" + RandomSuffix(4)
}

// RandomSuffix returns n hex characters from crypto/rand.
func RandomSuffix(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(b)[:n]
}
