// internal/engine/invalidate.go
package engine

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

/*
 * Rule-change invalidation subscriber.
 *
 * The authoring surface publishes the scope ID on a redis pub/sub channel
 * whenever a rule is created, edited, deleted, or toggled. Dropping the
 * scope's cache entries here propagates the change faster than the TTL
 * would. Invalidation is idempotent, so duplicate or unknown-scope messages
 * are harmless; a lost message only means waiting out the staleness window.
 */

// DefaultInvalidationChannel is the pub/sub channel rule changes arrive on.
const DefaultInvalidationChannel = "guardhouse:invalidate"

// RunInvalidationSubscriber consumes scope IDs from the channel and drops
// the matching cache entries until the context is cancelled. Intended to run
// as a goroutine owned by the daemon; returns the subscription error on
// abnormal exit.
func RunInvalidationSubscriber(ctx context.Context, client *redis.Client, channel string, eng *Engine, logger *zap.Logger) error {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			scopeID := msg.Payload
			if scopeID == "" {
				continue
			}
			eng.InvalidateScope(scopeID)
			logger.Debug("invalidated scope rules", zap.String("scope", scopeID))
		}
	}
}
