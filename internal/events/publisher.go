package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

const publishTimeout = 3 * time.Second

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Sequencer hands out per-partition sequence numbers.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type Metadata struct {
	CorrelationID string
	CausationID   string
}

type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	seq      Sequencer
	producer string
	now      func() time.Time
}

// NewPublisher opens a channel on conn and declares the events exchange.
func NewPublisher(conn *amqp.Connection, seq Sequencer, producer string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return newPublisher(ch, seq, producer), nil
}

func newPublisher(ch Channel, seq Sequencer, producer string) *Publisher {
	if producer == "" {
		producer = StorefrontProducer
	}
	return &Publisher{ch: ch, seq: seq, producer: producer, now: time.Now}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishCartCheckedOut publishes the hand-off event for snap and returns the
// envelope that was sent.
func (p *Publisher) PublishCartCheckedOut(ctx context.Context, sessionID, userID string, snap cart.Snapshot, meta Metadata) (EventEnvelope, error) {
	seq, err := p.seq.NextSequence(ctx, sessionID)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("reserve sequence: %w", err)
	}

	env := BuildCartCheckedOutEvent(sessionID, userID, snap, EnvelopeOptions{
		Sequence:      seq,
		Producer:      p.producer,
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		OccurredAt:    p.now().UTC(),
	})
	body, err := json.Marshal(env)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal CartCheckedOut envelope: %w", err)
	}

	if err := p.publishJSON(ctx, CartCheckedOutRoutingKey, env.EventID, body); err != nil {
		return EventEnvelope{}, fmt.Errorf("publish CartCheckedOut: %w", err)
	}
	return env, nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
}
