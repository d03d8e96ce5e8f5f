// Package amqpevents forwards entity events to a RabbitMQ exchange.
package amqpevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-repository/events"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       events.Kind     `json:"kind"`
	EntityName string          `json:"entity_name"`
	EntityID   int64           `json:"entity_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Entity     json.RawMessage `json:"entity,omitempty"`
}

// Option customises a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRoutingPrefix prepends prefix to every routing key.
func WithRoutingPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.routingPrefix = prefix
	}
}

// WithoutPayload publishes the envelope without the entity body.
func WithoutPayload() Option {
	return func(p *Publisher) {
		p.omitEntity = true
	}
}

// Publisher is an events.Handler that publishes each event to an exchange
// under the routing key "<entity>.<kind>".
type Publisher struct {
	channel       Channel
	exchange      string
	routingPrefix string
	omitEntity    bool
	logger        *zap.Logger
}

// NewPublisher returns a publisher writing to exchange through ch.
func NewPublisher(ch Channel, exchange string, opts ...Option) *Publisher {
	p := &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RoutingKey returns the key ev is published under.
func (p *Publisher) RoutingKey(ev events.Event) string {
	key := ev.EntityName + "." + string(ev.Kind)
	if p.routingPrefix != "" {
		key = p.routingPrefix + "." + key
	}
	return key
}

// Handle implements events.Handler.
func (p *Publisher) Handle(ctx context.Context, ev events.Event) error {
	env := Envelope{
		ID:         ev.ID.String(),
		Kind:       ev.Kind,
		EntityName: ev.EntityName,
		EntityID:   ev.EntityID,
		OccurredAt: ev.OccurredAt,
	}
	if !p.omitEntity && ev.Entity != nil {
		raw, err := json.Marshal(ev.Entity)
		if err != nil {
			return fmt.Errorf("amqpevents: marshal %s: %w", ev.EntityName, err)
		}
		env.Entity = raw
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("amqpevents: marshal envelope: %w", err)
	}

	topic := p.RoutingKey(ev)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Kind),
		Body:         body,
	}

	if err := p.channel.PublishWithContext(ctx, p.exchange, topic, false, false, msg); err != nil {
		p.logger.Error("RMQ/PUBLISH FAILED",
			zap.String("topic", topic),
			zap.String("message_id", env.ID),
			zap.Error(err),
		)
		return fmt.Errorf("amqpevents: publish %s: %w", topic, err)
	}

	p.logger.Debug("RMQ/PUBLISH",
		zap.String("topic", topic),
		zap.String("message_id", env.ID),
		zap.Int("payload", len(body)),
	)
	return nil
}
