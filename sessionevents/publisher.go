// Package sessionevents publishes session lifecycle changes to a watermill
// topic.
package sessionevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-biteui-client/session"
)

const DefaultTopic = "biteui.session"

const (
	TypeEstablished = "session.established"
	TypeCleared     = "session.cleared"
)

// NowTimeFunc stamps published events.
var NowTimeFunc = time.Now

// Event is the JSON payload of every published message.
type Event struct {
	Type       string         `json:"type"`
	Reason     session.Reason `json:"reason,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher is a session.Sink. Publish failures are logged and never reach
// the session manager.
type Publisher struct {
	publisher message.Publisher
	topic     string
	log       zerolog.Logger
}

type Option func(*Publisher)

func WithTopic(topic string) Option {
	return func(p *Publisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Publisher) {
		p.log = l
	}
}

func NewPublisher(pub message.Publisher, opts ...Option) *Publisher {
	p := &Publisher{publisher: pub, topic: DefaultTopic, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) SessionEstablished(ctx context.Context) {
	p.publish(ctx, Event{Type: TypeEstablished})
}

func (p *Publisher) SessionCleared(ctx context.Context, reason session.Reason) {
	p.publish(ctx, Event{Type: TypeCleared, Reason: reason})
}

// Publish sends e to the topic.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = NowTimeFunc().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", e.Type)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		p.log.Error().Err(err).Str("topic", p.topic).Str("type", e.Type).Msg("session event not published")
	}
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}
