package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tallyapp/tally/internal/model"
)

const (
	// identityKeyPrefix is the Redis key prefix for resolved token identities.
	identityKeyPrefix = "auth:identity:"

	// DefaultIdentityTTL is how long a verified token skips the user lookup.
	DefaultIdentityTTL = 5 * time.Minute
)

// cachedIdentity represents an auth context stored in Redis.
type cachedIdentity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IdentityCache remembers which tokens belong to users that still exist.
// Keys are token fingerprints, never raw tokens.
type IdentityCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewIdentityCache creates an IdentityCache. A non-positive ttl uses
// DefaultIdentityTTL.
func NewIdentityCache(c *Cache, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	return &IdentityCache{cache: c, ttl: ttl}
}

// GetIdentity returns the cached identity for a token fingerprint or
// ErrCacheMiss.
func (i *IdentityCache) GetIdentity(ctx context.Context, fingerprint string) (*model.AuthContext, error) {
	data, err := i.cache.getBytes(ctx, identityKeyPrefix+fingerprint)
	if err != nil {
		return nil, err
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil || cached.UserID == "" {
		// Corrupted cache entry - treat as miss
		return nil, ErrCacheMiss
	}

	return &model.AuthContext{UserID: cached.UserID, Email: cached.Email}, nil
}

// SetIdentity caches identity for a token fingerprint. The entry never
// outlives the token itself.
func (i *IdentityCache) SetIdentity(ctx context.Context, fingerprint string, identity *model.AuthContext, tokenExpiresAt time.Time) error {
	ttl := i.ttl
	if remaining := time.Until(tokenExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cachedIdentity{UserID: identity.UserID, Email: identity.Email})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	return i.cache.client.Set(ctx, identityKeyPrefix+fingerprint, data, ttl).Err()
}

// DeleteIdentity removes a cached identity.
func (i *IdentityCache) DeleteIdentity(ctx context.Context, fingerprint string) error {
	return i.cache.client.Del(ctx, identityKeyPrefix+fingerprint).Err()
}
