// internal/engine/cooldown_redis.go
package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

/*
 * Redis-backed cooldown store.
 *
 * Shares suppression state across engine instances behind the same gateway.
 * Each key stores the last-fired unix timestamp with a TTL equal to the
 * retention ceiling, so redis performs the sweep the in-memory store runs
 * manually. Window checks compare against the stored timestamp rather than
 * relying on TTL expiry, because the window is per rule while the TTL is the
 * global retention bound.
 */

// RedisCooldownStore is the multi-instance CooldownStore.
type RedisCooldownStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisCooldownStore wraps an existing redis client.
// A non-positive retention falls back to DefaultCooldownRetention.
func NewRedisCooldownStore(client *redis.Client, retention time.Duration) *RedisCooldownStore {
	if retention <= 0 {
		retention = DefaultCooldownRetention
	}
	return &RedisCooldownStore{
		client:    client,
		retention: retention,
		now:       time.Now,
	}
}

// IsOnCooldown implements CooldownStore.
func (s *RedisCooldownStore) IsOnCooldown(ctx context.Context, ruleID, actorID string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	val, err := s.client.Get(ctx, redisCooldownKey(ruleID, actorID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lastUnix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Unparseable value is treated as no cooldown; it will be
		// overwritten on the next successful match.
		return false, nil
	}
	return s.now().Sub(time.Unix(lastUnix, 0)) < window, nil
}

// SetCooldown implements CooldownStore.
func (s *RedisCooldownStore) SetCooldown(ctx context.Context, ruleID, actorID string) error {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	return s.client.Set(ctx, redisCooldownKey(ruleID, actorID), ts, s.retention).Err()
}

func redisCooldownKey(ruleID, actorID string) string {
	return "guardhouse/cooldown/" + ruleID + "/" + actorID
}
