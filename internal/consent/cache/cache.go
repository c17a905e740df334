// Package cache provides a Redis read-through cache for tier lookups.
// Tier reads sit on the hot path of every batch evaluation; the cache keeps
// them off the database while SetTier invalidation bounds staleness.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"othello/internal/consent/models"
	"othello/internal/platform/redis"
	id "othello/pkg/domain"
)

// TierCache caches resolved tiers per (user, scope).
type TierCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *TierCache {
	return &TierCache{client: client, ttl: ttl}
}

func key(userID id.UserID, scope models.Scope) string {
	return fmt.Sprintf("othello:tier:%s:%s", userID, scope)
}

// Get returns the cached tier and whether it was present.
func (c *TierCache) Get(ctx context.Context, userID id.UserID, scope models.Scope) (id.ConsentTier, bool, error) {
	val, err := c.client.Get(ctx, key(userID, scope)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("tier cache get: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("tier cache parse: %w", err)
	}
	tier := id.ConsentTier(n)
	if !tier.IsValid() {
		return 0, false, nil
	}
	return tier, true, nil
}

// Set caches a resolved tier.
func (c *TierCache) Set(ctx context.Context, userID id.UserID, scope models.Scope, tier id.ConsentTier) error {
	if err := c.client.Set(ctx, key(userID, scope), int(tier), c.ttl).Err(); err != nil {
		return fmt.Errorf("tier cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached tier for a scope and the global scope. Scoped
// entries that cached a global fallback are not enumerable here; the short
// TTL bounds their staleness after a global tier change.
func (c *TierCache) Invalidate(ctx context.Context, userID id.UserID, scope models.Scope) error {
	keys := []string{key(userID, scope)}
	if scope != models.ScopeGlobal {
		keys = append(keys, key(userID, models.ScopeGlobal))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("tier cache invalidate: %w", err)
	}
	return nil
}
