package local

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexiom/backend/internal/identity"
)

const cacheKeyPrefix = "session:"

// SessionCache caches validated sessions in Redis, keyed by token hash.
// Entries never outlive the session's own expiry.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a Redis session cache.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

// Get returns the cached session, or nil on miss. Cache errors degrade to a
// miss; the caller falls back to the database.
func (c *SessionCache) Get(ctx context.Context, tokenHash string) *identity.RawSession {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+tokenHash).Bytes()
	if err != nil {
		return nil
	}
	var rs identity.RawSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil
	}
	return &rs
}

// Set stores the session until its expiry or the cache TTL, whichever is
// sooner.
func (c *SessionCache) Set(ctx context.Context, tokenHash string, rs *identity.RawSession) {
	ttl := c.ttl
	if remaining := time.Until(rs.Session.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(rs)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKeyPrefix+tokenHash, raw, ttl)
}

// Delete drops the cached session.
func (c *SessionCache) Delete(ctx context.Context, tokenHash string) {
	c.client.Del(ctx, cacheKeyPrefix+tokenHash)
}
