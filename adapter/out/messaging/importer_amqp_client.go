package messaging

import (
	"errors"
	"fmt"
	"sync"

	"importer_server/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPClient manages the RabbitMQ connection and channel.
type AMQPClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex
	url     string
}

// NewAMQPClient dials the broker and opens a channel.
func NewAMQPClient(url string) (*AMQPClient, error) {
	client := &AMQPClient{url: url}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create AMQP client: %w", err)
	}
	return client, nil
}

func (c *AMQPClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch

	go c.handleConnectionClose(conn)

	logger.Info("[AMQP] client connected")
	return nil
}

// handleConnectionClose logs an unexpected connection loss.
func (c *AMQPClient) handleConnectionClose(conn *amqp.Connection) {
	closeErr := conn.NotifyClose(make(chan *amqp.Error, 1))
	if err := <-closeErr; err != nil {
		logger.Error("[AMQP] connection closed: %v", err)
	}
}

// Channel returns the current channel.
func (c *AMQPClient) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the channel and connection.
func (c *AMQPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("[AMQP] client closed")
	return nil
}
