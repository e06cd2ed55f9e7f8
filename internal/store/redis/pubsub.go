package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomPattern matches every board room channel.
const RoomPattern = "room:*"

type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

// NewFromClient wraps an existing client; used by tests.
func NewFromClient(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	out, cleanup, err := ps.pump(ctx, ps.client.Subscribe(ctx, channel))
	if err != nil {
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: %w", err)
	}
	return out, cleanup, nil
}

// PSubscribe subscribes to every channel matching pattern.
func (ps *PubSub) PSubscribe(ctx context.Context, pattern string) (<-chan []byte, func(), error) {
	out, cleanup, err := ps.pump(ctx, ps.client.PSubscribe(ctx, pattern))
	if err != nil {
		return nil, nil, fmt.Errorf("redis.PubSub.PSubscribe: %w", err)
	}
	return out, cleanup, nil
}

func (ps *PubSub) pump(ctx context.Context, sub *redis.PubSub) (<-chan []byte, func(), error) {
	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// ClaimOnce sets key if it does not exist yet and reports whether this call
// set it. The key expires after ttl.
func (ps *PubSub) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := ps.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis.PubSub.ClaimOnce: %w", err)
	}
	return ok, nil
}

// RoomChannel returns the Redis channel name for a board room.
func RoomChannel(roomID string) string {
	return "room:" + roomID
}

// ReminderKey returns the de-duplication key for a due-date reminder.
func ReminderKey(taskID string, due time.Time) string {
	return "reminder:" + taskID + ":" + due.UTC().Format(time.RFC3339)
}
