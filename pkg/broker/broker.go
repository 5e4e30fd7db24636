// Package broker wraps the AMQP topology shared by every orderflow
// process: one durable direct exchange, one durable queue per consumer
// bound by the exact event type it wants, and a dead-letter exchange for
// messages a consumer refuses with a retryable failure.
package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxSuffix = ".dlx"
	dlqSuffix = ".dlq"
)

// Dial opens a broker connection. Callers wrap it in resilience.Conn so a
// refused connection is retried with backoff rather than surfaced.
func Dial(ctx context.Context, url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	return conn, nil
}

// Channel opens a channel and declares the event exchange plus the
// dead-letter topology on it. Declarations are idempotent, so every
// process declares what it needs at startup.
func Channel(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := declareTopology(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func declareTopology(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	dlx := exchange + dlxSuffix
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", dlx, err)
	}
	dlq := exchange + dlqSuffix
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue %s: %w", dlq, err)
	}
	return nil
}

// DeclareQueue declares a durable consumer queue bound to the exchange
// with an exact-match routing key. Rejected messages dead-letter to the
// shared DLX.
func DeclareQueue(ch *amqp.Channel, exchange, queue, routingKey string) error {
	args := amqp.Table{"x-dead-letter-exchange": exchange + dlxSuffix}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, routingKey, err)
	}
	return nil
}

// Consume starts delivery from a queue with the given in-flight limit.
func Consume(ch *amqp.Channel, queue string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, nil
}

// Publisher publishes persistent JSON messages to the event exchange.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(ch *amqp.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish sends body to every queue bound with routingKey. Delivery is
// marked persistent so the broker journals it before acknowledging.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte, headers map[string]any) error {
	err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table(headers),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}
