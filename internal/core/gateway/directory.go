// internal/core/gateway/directory.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/guardhouse/guardhouse/internal/types"
)

// Directory resolves actors over NATS request-reply. The gateway workers
// hold the member cache and answer with the actor's current role set.
type Directory struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewDirectory creates a directory client for the given lookup subject.
func NewDirectory(conn *nats.Conn, subject string, timeout time.Duration) *Directory {
	return &Directory{conn: conn, subject: subject, timeout: timeout}
}

type directoryRequest struct {
	ScopeID string `json:"scope_id"`
	ActorID string `json:"actor_id"`
}

type directoryReply struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	IsBot            bool      `json:"is_bot"`
	AccountCreatedAt time.Time `json:"account_created_at"`
	JoinedAt         time.Time `json:"joined_at"`
	RoleIDs          []string  `json:"role_ids"`
}

// Lookup resolves one actor within a scope. Any transport or decode failure
// wraps ErrActorUnavailable so the engine can fail closed without inspecting
// transport details.
func (d *Directory) Lookup(ctx context.Context, scopeID, actorID string) (*types.Actor, error) {
	payload, err := json.Marshal(directoryRequest{ScopeID: scopeID, ActorID: actorID})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode lookup: %v", types.ErrActorUnavailable, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg, err := d.conn.RequestWithContext(reqCtx, d.subject, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup request failed: %v", types.ErrActorUnavailable, err)
	}

	var reply directoryReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("%w: failed to decode lookup reply: %v", types.ErrActorUnavailable, err)
	}
	if reply.ID == "" {
		return nil, fmt.Errorf("%w: actor %s not found in scope %s", types.ErrActorUnavailable, actorID, scopeID)
	}

	return &types.Actor{
		ID:               reply.ID,
		Username:         reply.Username,
		DisplayName:      reply.DisplayName,
		IsBot:            reply.IsBot,
		AccountCreatedAt: reply.AccountCreatedAt,
		JoinedAt:         reply.JoinedAt,
		RoleIDs:          reply.RoleIDs,
	}, nil
}
