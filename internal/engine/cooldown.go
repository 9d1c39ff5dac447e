// internal/engine/cooldown.go
package engine

import (
	"context"
	"sync"
	"time"
)

/*
 * Cooldown tracking.
 *
 * Records the last time each (rule, actor) pair fired so a matching rule is
 * suppressed while its configured window is still open. Reads never mutate
 * state; only a successful match sets the timestamp.
 *
 * The in-memory store is the default: a mutexed map handles the
 * read-then-write race a burst of events from one spammy actor produces
 * (the exact scenario cooldown exists for). A background sweep removes
 * entries older than a fixed retention ceiling regardless of per-rule
 * windows, bounding memory independent of configured cooldowns. The redis
 * store in cooldown_redis.go covers multi-instance deployments.
 */

// Sweep defaults. Retention caps entry lifetime independent of any rule's
// own window; rules with longer cooldowns than the retention ceiling
// effectively reset early, which is the documented bound, not a bug.
const (
	DefaultSweepInterval     = 5 * time.Minute
	DefaultCooldownRetention = time.Hour
)

// CooldownStore tracks last-fired timestamps per (rule, actor) pair.
type CooldownStore interface {
	// IsOnCooldown reports whether the pair fired within the window.
	// A non-positive window means cooldown is disabled for the rule.
	IsOnCooldown(ctx context.Context, ruleID, actorID string, window time.Duration) (bool, error)
	// SetCooldown marks the pair as having fired now.
	SetCooldown(ctx context.Context, ruleID, actorID string) error
}

// MemCooldownStore is the single-process CooldownStore.
type MemCooldownStore struct {
	mu    sync.Mutex
	fired map[string]time.Time
	now   func() time.Time
}

// NewMemCooldownStore creates an empty in-memory cooldown store.
func NewMemCooldownStore() *MemCooldownStore {
	return &MemCooldownStore{
		fired: make(map[string]time.Time),
		now:   time.Now,
	}
}

// IsOnCooldown implements CooldownStore.
func (s *MemCooldownStore) IsOnCooldown(ctx context.Context, ruleID, actorID string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.fired[cooldownKey(ruleID, actorID)]
	if !ok {
		return false, nil
	}
	return s.now().Sub(last) < window, nil
}

// SetCooldown implements CooldownStore.
func (s *MemCooldownStore) SetCooldown(ctx context.Context, ruleID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[cooldownKey(ruleID, actorID)] = s.now()
	return nil
}

// Sweep removes entries older than the retention ceiling and returns how
// many were removed.
func (s *MemCooldownStore) Sweep(retention time.Duration) int {
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, last := range s.fired {
		if last.Before(cutoff) {
			delete(s.fired, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on the interval until the context is cancelled.
// Intended to run as a goroutine owned by the daemon.
func (s *MemCooldownStore) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultCooldownRetention
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(retention)
		}
	}
}

// cooldownKey joins rule and actor; "/" cannot occur in either ID.
func cooldownKey(ruleID, actorID string) string {
	return ruleID + "/" + actorID
}
