// internal/core/gateway/commander.go
package gateway

/*
 * Action command publishing.
 *
 * The engine never talks to the chat platform directly. Each moderation
 * primitive becomes a JSON command published to the gateway workers, one
 * subject per command kind under a common prefix, so platform-facing rate
 * limiting and retries stay in the worker fleet. Publishing is fire and
 * forget on top of the client's buffered connection; a publish error here
 * means the connection itself is down.
 *
 * Audit entries are the exception: they are local state, written straight
 * to the store.
 */

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/guardhouse/guardhouse/internal/types"
)

// AuditSink persists audit entries for executed rules.
type AuditSink interface {
	AppendAudit(ctx context.Context, entry types.AuditEntry) error
}

// Commander publishes moderation commands to the platform gateway.
type Commander struct {
	conn   *nats.Conn
	prefix string
	audits AuditSink
}

// NewCommander creates a commander publishing under the given subject prefix.
func NewCommander(conn *nats.Conn, prefix string, audits AuditSink) *Commander {
	return &Commander{conn: conn, prefix: prefix, audits: audits}
}

// command is the wire form of one moderation primitive invocation. Fields
// not used by a given kind are omitted.
type command struct {
	ScopeID    string `json:"scope_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	PurgeDays  int    `json:"purge_days,omitempty"`
	RoleID     string `json:"role_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

func (c *Commander) publish(kind string, cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", kind, err)
	}
	if err := c.conn.Publish(c.prefix+"."+kind, payload); err != nil {
		return fmt.Errorf("failed to publish %s command: %w", kind, err)
	}
	return nil
}

// DeleteContent asks the gateway to remove the triggering message.
func (c *Commander) DeleteContent(ctx context.Context, evt *types.Event) error {
	return c.publish("delete_message", command{
		ScopeID:    evt.ScopeID,
		LocationID: evt.LocationID,
		ActorID:    evt.ActorID,
	})
}

// Warn sends a formal warning to the actor.
func (c *Commander) Warn(ctx context.Context, scopeID, actorID, reason string) error {
	return c.publish("warn", command{ScopeID: scopeID, ActorID: actorID, Reason: reason})
}

// Timeout mutes the actor for the given duration.
func (c *Commander) Timeout(ctx context.Context, scopeID, actorID string, duration time.Duration, reason string) error {
	return c.publish("timeout", command{
		ScopeID:    scopeID,
		ActorID:    actorID,
		Reason:     reason,
		DurationMS: duration.Milliseconds(),
	})
}

// Kick removes the actor from the scope.
func (c *Commander) Kick(ctx context.Context, scopeID, actorID, reason string) error {
	return c.publish("kick", command{ScopeID: scopeID, ActorID: actorID, Reason: reason})
}

// Ban removes the actor permanently, optionally purging recent messages.
func (c *Commander) Ban(ctx context.Context, scopeID, actorID, reason string, purgeDays int) error {
	return c.publish("ban", command{
		ScopeID:   scopeID,
		ActorID:   actorID,
		Reason:    reason,
		PurgeDays: purgeDays,
	})
}

// DirectMessage sends a private message to the actor.
func (c *Commander) DirectMessage(ctx context.Context, actorID, text string) error {
	return c.publish("direct_message", command{ActorID: actorID, Text: text})
}

// SendToLocation posts a message in the channel the event occurred in.
func (c *Commander) SendToLocation(ctx context.Context, locationID, text string) error {
	return c.publish("channel_message", command{LocationID: locationID, Text: text})
}

// AddRole grants a role to the actor.
func (c *Commander) AddRole(ctx context.Context, scopeID, actorID, roleID string) error {
	return c.publish("add_role", command{ScopeID: scopeID, ActorID: actorID, RoleID: roleID})
}

// RemoveRole revokes a role from the actor.
func (c *Commander) RemoveRole(ctx context.Context, scopeID, actorID, roleID string) error {
	return c.publish("remove_role", command{ScopeID: scopeID, ActorID: actorID, RoleID: roleID})
}

// AuditLog writes the firing record to the store.
func (c *Commander) AuditLog(ctx context.Context, entry *types.AuditEntry) error {
	return c.audits.AppendAudit(ctx, *entry)
}
