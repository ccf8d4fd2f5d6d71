package messaging

import (
	"context"
	"fmt"
	"time"

	"importer_server/core/port/out"
	"importer_server/pkg/logger"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpPublishTimeout = 5 * time.Second

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher implements out.EventPublisher on a topic exchange. The
// event topic is the routing key.
type AMQPPublisher struct {
	channel  func() amqpChannel
	exchange string
}

// NewAMQPPublisher creates a publisher for exchange.
func NewAMQPPublisher(client *AMQPClient, exchange string) *AMQPPublisher {
	return &AMQPPublisher{
		channel:  func() amqpChannel { return client.Channel() },
		exchange: exchange,
	}
}

// Publish sends payload as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, amqpPublishTimeout)
		defer cancel()
	}

	err = p.channel().PublishWithContext(ctx, p.exchange, topic,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to exchange '%s' with routing key '%s': %w", p.exchange, topic, err)
	}

	logger.Debug("[AMQP] published %s to %s", topic, p.exchange)
	return nil
}

var _ out.EventPublisher = (*AMQPPublisher)(nil)
