// internal/core/gateway/consumer.go

// Package gateway connects the moderation engine to the platform message
// bus. Inbound message events arrive on a NATS queue subscription, action
// commands are published back to the gateway workers, and actor details are
// resolved over request-reply.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/guardhouse/guardhouse/internal/engine"
	"github.com/guardhouse/guardhouse/internal/types"
)

// eventTimeout bounds how long one event may spend in the engine, including
// the actor lookup and every action publish.
const eventTimeout = 10 * time.Second

// eventEnvelope is the wire form of a message event as the ingest workers
// publish it.
type eventEnvelope struct {
	Kind            string    `json:"kind"`
	ScopeID         string    `json:"scope_id"`
	LocationID      string    `json:"location_id"`
	LocationName    string    `json:"location_name"`
	LocationNSFW    bool      `json:"location_nsfw"`
	ActorID         string    `json:"actor_id"`
	Content         string    `json:"content"`
	MentionCount    int       `json:"mention_count"`
	AttachmentCount int       `json:"attachment_count"`
	StickerCount    int       `json:"sticker_count"`
	EmbedCount      int       `json:"embed_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// DecodeEvent parses a wire envelope into an engine event.
func DecodeEvent(data []byte) (*types.Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	kind := types.ParseTrigger(env.Kind)
	if kind == types.TriggerUnspecified {
		return nil, fmt.Errorf("%w: event kind %q", types.ErrUnknownTrigger, env.Kind)
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &types.Event{
		Kind:            kind,
		ScopeID:         env.ScopeID,
		LocationID:      env.LocationID,
		LocationName:    env.LocationName,
		LocationNSFW:    env.LocationNSFW,
		ActorID:         env.ActorID,
		Content:         env.Content,
		MentionCount:    env.MentionCount,
		AttachmentCount: env.AttachmentCount,
		StickerCount:    env.StickerCount,
		EmbedCount:      env.EmbedCount,
		Timestamp:       ts,
	}, nil
}

// Consumer subscribes to the event subject and feeds decoded events to the
// engine. A queue group spreads load across daemon replicas; each event is
// handled by exactly one member.
type Consumer struct {
	conn    *nats.Conn
	engine  *engine.Engine
	logger  *zap.Logger
	subject string
	queue   string
}

// NewConsumer creates a consumer over an established NATS connection.
func NewConsumer(conn *nats.Conn, eng *engine.Engine, logger *zap.Logger, subject, queue string) *Consumer {
	return &Consumer{
		conn:    conn,
		engine:  eng,
		logger:  logger,
		subject: subject,
		queue:   queue,
	}
}

// Run subscribes and blocks until the context is cancelled, then drains the
// subscription so in-flight events finish.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		c.handle(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.subject, err)
	}

	c.logger.Info("event consumer started",
		zap.String("subject", c.subject),
		zap.String("queue", c.queue))

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		c.logger.Warn("subscription drain failed", zap.Error(err))
	}
	return nil
}

// handle decodes and processes one event. Malformed envelopes are logged and
// dropped; the bus must never see an error from the moderation side.
func (c *Consumer) handle(data []byte) {
	evt, err := DecodeEvent(data)
	if err != nil {
		c.logger.Warn("dropping malformed event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if err := c.engine.ProcessMessage(ctx, evt); err != nil {
		c.logger.Error("event processing failed", zap.Error(err))
	}
}
