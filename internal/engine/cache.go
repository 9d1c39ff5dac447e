// internal/engine/cache.go
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/guardhouse/guardhouse/internal/rules"
	"github.com/guardhouse/guardhouse/internal/types"
)

/*
 * Rule cache.
 *
 * Holds the parsed, priority-sorted rule list per (scope, trigger) key in
 * front of the store, bounding evaluation latency by cache-hit latency
 * instead of store latency. Entries expire on a staleness TTL (default 60s,
 * the authoring-to-effect latency tolerance) and are also dropped eagerly by
 * Invalidate when the authoring surface signals a change.
 *
 * Concurrency: go-cache entries are replaced atomically per key; two
 * concurrent misses for the same key may both fetch and the last writer
 * wins. Duplicate fetches are acceptable, corrupted state is not. No lock is
 * held across the store call.
 *
 * Failure: a store error on fill propagates to the orchestrator, which
 * fails closed for the event (skips evaluation rather than evaluating
 * against wrong rules). Malformed rows isolate the one rule: it is skipped
 * with a single log line per fill, and the remaining rules load normally.
 */

// DefaultCacheTTL bounds how stale a cached rule list may get before refetch.
const DefaultCacheTTL = 60 * time.Second

// RuleFetcher lists enabled rule rows for one (scope, trigger) pair.
// Implemented by the store; faked in tests.
type RuleFetcher interface {
	ListEnabledRules(ctx context.Context, scopeID string, trigger types.TriggerKind) ([]types.RuleRecord, error)
}

// RuleCache caches parsed rule lists per (scope, trigger).
type RuleCache struct {
	fetcher RuleFetcher
	logger  *zap.Logger
	ttl     time.Duration
	entries *gocache.Cache
}

// NewRuleCache creates a cache with the given staleness window.
// A non-positive ttl falls back to DefaultCacheTTL.
func NewRuleCache(fetcher RuleFetcher, logger *zap.Logger, ttl time.Duration) *RuleCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RuleCache{
		fetcher: fetcher,
		logger:  logger,
		ttl:     ttl,
		entries: gocache.New(ttl, 2*ttl),
	}
}

// GetRules returns the enabled rules for the scope and trigger, sorted by
// ascending priority with store insertion order breaking ties. A fetch
// failure on miss is returned to the caller; the previous entry, if any, has
// already expired and is never served in its place.
func (c *RuleCache) GetRules(ctx context.Context, scopeID string, trigger types.TriggerKind) ([]*types.Rule, error) {
	key := cacheKey(scopeID, trigger)
	if cached, ok := c.entries.Get(key); ok {
		ruleFetches.WithLabelValues("hit").Inc()
		return cached.([]*types.Rule), nil
	}

	records, err := c.fetcher.ListEnabledRules(ctx, scopeID, trigger)
	if err != nil {
		ruleFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrRulesUnavailable, err)
	}
	ruleFetches.WithLabelValues("miss").Inc()

	parsed := make([]*types.Rule, 0, len(records))
	for i := range records {
		rule, err := rules.ParseRule(&records[i])
		if err != nil {
			// One bad blob drops one rule, not the scope's whole set.
			c.logger.Error("skipping malformed rule",
				zap.String("scope", scopeID),
				zap.String("rule", records[i].RuleID),
				zap.Error(err))
			continue
		}
		parsed = append(parsed, rule)
	}

	// Stable sort keeps store insertion order for equal priorities.
	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Priority < parsed[j].Priority
	})

	c.entries.Set(key, parsed, c.ttl)
	return parsed, nil
}

// Invalidate drops every cache entry belonging to the scope, forcing the
// next lookup to refetch. Idempotent and safe to call with no entry present
// or concurrently with in-flight lookups.
func (c *RuleCache) Invalidate(scopeID string) {
	prefix := scopeID + "|"
	for key := range c.entries.Items() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
		}
	}
}

// cacheKey builds the (scope, trigger) map key. The "|" separator keeps
// Invalidate's prefix match from touching other scopes.
func cacheKey(scopeID string, trigger types.TriggerKind) string {
	return scopeID + "|" + trigger.String()
}
