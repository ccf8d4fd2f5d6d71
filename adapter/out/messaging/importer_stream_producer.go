// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"importer_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// dataField is the stream entry field holding the JSON payload.
const dataField = "data"

// RedisProducer implements out.JobProducer using Redis Streams.
type RedisProducer struct {
	client redis.Cmdable
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client redis.Cmdable) *RedisProducer {
	return &RedisProducer{client: client}
}

// PublishImportJob enqueues an import job for the worker role.
func (p *RedisProducer) PublishImportJob(ctx context.Context, job *out.ImportJobMessage) error {
	return publish(ctx, p.client, out.StreamContactImport, job, 0)
}

var _ out.JobProducer = (*RedisProducer)(nil)

// StreamPublisher implements out.EventPublisher by appending each event to
// a stream named after its topic.
type StreamPublisher struct {
	client redis.Cmdable
	maxLen int64
}

// NewStreamPublisher creates an event publisher. maxLen caps each topic
// stream approximately; zero leaves streams unbounded.
func NewStreamPublisher(client redis.Cmdable, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, maxLen: maxLen}
}

// Publish appends payload to the topic stream.
func (p *StreamPublisher) Publish(ctx context.Context, topic string, payload any) error {
	return publish(ctx, p.client, topic, payload, p.maxLen)
}

var _ out.EventPublisher = (*StreamPublisher)(nil)

// publish appends a JSON payload to a stream using go-redis.
func publish(ctx context.Context, client redis.Cmdable, stream string, payload interface{}, maxLen int64) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			dataField: string(data),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	if err := client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}
