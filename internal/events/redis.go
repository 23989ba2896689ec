package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream receiving expense events.
	StreamKey = "stream:expense_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
)

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	redis  *redis.Client
	stream string
}

// NewStreamPublisher creates a StreamPublisher. The client is shared and
// is not closed by Close.
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{redis: client, stream: StreamKey}
}

// Publish adds the event to the stream.
func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    string(event.Type),
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}

// Close is a no-op; the Redis client belongs to the cache.
func (p *StreamPublisher) Close() error {
	return nil
}
