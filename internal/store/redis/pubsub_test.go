package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/gosuda/taskboard/internal/store/redis"
)

func newPubSub(t *testing.T) (*redisstore.PubSub, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	ps := redisstore.NewFromClient(client)
	t.Cleanup(func() { _ = ps.Close() })
	return ps, mr
}

func TestRoomChannel(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "room:board-1", redisstore.RoomChannel("board-1"))
	})

	t.Run("matches pattern prefix", func(t *testing.T) {
		t.Parallel()

		prefix := strings.TrimSuffix(redisstore.RoomPattern, "*")
		assert.True(t, strings.HasPrefix(redisstore.RoomChannel("x"), prefix))
	})

	t.Run("different inputs produce different outputs", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t, redisstore.RoomChannel("a"), redisstore.RoomChannel("b"))
	})
}

func TestReminderKey(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 7, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	got := redisstore.ReminderKey("task-1", due)

	assert.Equal(t, "reminder:task-1:2026-07-01T00:00:00Z", got, "due date must be normalized to UTC")
}

func TestPubSub_PSubscribeRoundTrip(t *testing.T) {
	t.Parallel()

	ps, _ := newPubSub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, cleanup, err := ps.PSubscribe(ctx, redisstore.RoomPattern)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, ps.Publish(ctx, redisstore.RoomChannel("board-1"), []byte(`{"hello":"world"}`)))
	require.NoError(t, ps.Publish(ctx, "unrelated", []byte(`ignored`)))

	select {
	case msg := <-messages:
		assert.JSONEq(t, `{"hello":"world"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	select {
	case msg := <-messages:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPubSub_SubscribeClosesOnCancel(t *testing.T) {
	t.Parallel()

	ps, _ := newPubSub(t)
	ctx, cancel := context.WithCancel(context.Background())

	messages, cleanup, err := ps.Subscribe(ctx, redisstore.RoomChannel("b"))
	require.NoError(t, err)
	defer cleanup()

	cancel()

	select {
	case _, ok := <-messages:
		assert.False(t, ok, "channel must close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestPubSub_ClaimOnce(t *testing.T) {
	t.Parallel()

	ps, mr := newPubSub(t)
	ctx := context.Background()

	first, err := ps.ClaimOnce(ctx, "reminder:x", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ps.ClaimOnce(ctx, "reminder:x", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	ttl := mr.TTL("reminder:x")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}
