package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/eventpass/backend/internal/models"
)

// DefaultStreamMaxLen bounds the stream so it does not grow without limit.
const DefaultStreamMaxLen = 100_000

// RedisStream appends each event to a Redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewRedisStream(client *redis.Client, stream string) *RedisStream {
	return &RedisStream{client: client, stream: stream, maxLen: DefaultStreamMaxLen}
}

func (r *RedisStream) Publish(ctx context.Context, ev models.Event) error {
	body, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("%w: encode event %d: %v", ErrPermanent, ev.Seq, err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"seq":   ev.Seq,
			"kind":  ev.Kind,
			"key":   key(ev),
			"event": body,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd event %d to %s: %w", ev.Seq, r.stream, err)
	}
	return nil
}
