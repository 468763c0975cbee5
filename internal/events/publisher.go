package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher emits payment outcome events. It implements checkout.Sink.
type Publisher struct {
	ch       channel
	producer string
}

type PublisherOptions struct {
	Producer string
}

func NewPublisher(conn *amqp.Connection, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, opts), nil
}

func newPublisher(ch channel, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = checkoutClientServiceName
	}
	return &Publisher{ch: ch, producer: producer}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) Record(ctx context.Context, res checkout.Result) error {
	ev, routingKey := newPaymentOutcomeEvent(res, p.producer, time.Now().UTC())
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", ev.EventName, err)
	}
	if err := p.publishJSON(ctx, routingKey, ev.EventID, body); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventName, err)
	}
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

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

var _ checkout.Sink = (*Publisher)(nil)
