package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
)

type frame struct {
	Type         string          `json:"type"`
	ConnectionID string          `json:"connection_id"`
	Room         string          `json:"room"`
	TaskID       uuid.UUID       `json:"task_id"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
}

func newServer(t *testing.T) (*hub.Hub, string) {
	t.Helper()

	h := hub.New()
	r := chi.NewRouter()
	r.Get("/ws/board/{boardID}", ws.NewHandler(h, 8, time.Minute, nil).ServeBoard)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type client struct {
	conn *websocket.Conn
	id   hub.ConnID
}

func dial(t *testing.T, base, board string) *client {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, base+"/ws/board/"+board, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	c := &client{conn: conn}
	hello := c.read(t)
	require.Equal(t, ws.FrameHello, hello.Type)
	require.Equal(t, board, hello.Room)
	require.NotEmpty(t, hello.ConnectionID)
	c.id = hub.ConnID(hello.ConnectionID)
	return c
}

func (c *client) read(t *testing.T) frame {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var f frame
	require.NoError(t, wsjson.Read(ctx, c.conn, &f))
	return f
}

func (c *client) write(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, wsjson.Write(t.Context(), c.conn, v))
}

func waitMembers(t *testing.T, h *hub.Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.MemberCount(room) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBoard_RelaysClientEventsToOthers(t *testing.T) {
	t.Parallel()

	h, base := newServer(t)
	alice := dial(t, base, "board-1")
	bob := dial(t, base, "board-1")
	waitMembers(t, h, "board-1", 2)

	taskID := uuid.New()
	alice.write(t, map[string]any{
		"type":    "task-moved",
		"task_id": taskID,
		"data":    map[string]string{"status": "review"},
	})

	got := bob.read(t)
	assert.Equal(t, string(domain.EventTaskMoved), got.Type)
	assert.Equal(t, "board-1", got.Room)
	assert.Equal(t, taskID, got.TaskID)
	assert.JSONEq(t, `{"status":"review"}`, string(got.Data))

	// The sender must not see its own event; the next frame it gets is the pong.
	alice.write(t, map[string]string{"type": ws.FramePing})
	assert.Equal(t, ws.FramePong, alice.read(t).Type)
}

func TestBoard_ServerPublishExcludesOrigin(t *testing.T) {
	t.Parallel()

	h, base := newServer(t)
	alice := dial(t, base, "board-1")
	bob := dial(t, base, "board-1")
	waitMembers(t, h, "board-1", 2)

	task := &domain.Task{ID: uuid.New(), Board: "board-1", Title: "x"}
	n, err := h.Publish(alice.id, "board-1", domain.TaskEvent(domain.EventTaskUpdated, task))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := bob.read(t)
	assert.Equal(t, string(domain.EventTaskUpdated), got.Type)
	assert.Equal(t, task.ID, got.TaskID)

	alice.write(t, map[string]string{"type": ws.FramePing})
	assert.Equal(t, ws.FramePong, alice.read(t).Type)
}

func TestBoard_JoinSwitchesRooms(t *testing.T) {
	t.Parallel()

	h, base := newServer(t)
	alice := dial(t, base, "board-1")
	bob := dial(t, base, "board-2")
	waitMembers(t, h, "board-1", 1)
	waitMembers(t, h, "board-2", 1)

	alice.write(t, map[string]string{"type": ws.FrameJoin, "room": "board-2"})
	joined := alice.read(t)
	assert.Equal(t, ws.FrameJoined, joined.Type)
	assert.Equal(t, "board-2", joined.Room)
	assert.Equal(t, 0, h.MemberCount("board-1"))
	assert.Equal(t, 2, h.MemberCount("board-2"))

	alice.write(t, map[string]any{"type": "task-created", "task_id": uuid.New()})
	got := bob.read(t)
	assert.Equal(t, string(domain.EventTaskCreated), got.Type)
	assert.Equal(t, "board-2", got.Room)
}

func TestBoard_RejectsUnknownFrames(t *testing.T) {
	t.Parallel()

	_, base := newServer(t)
	alice := dial(t, base, "board-1")

	alice.write(t, map[string]string{"type": "self-destruct"})
	got := alice.read(t)
	assert.Equal(t, ws.FrameError, got.Type)
	assert.Contains(t, got.Message, "self-destruct")

	alice.write(t, map[string]string{"type": ws.FrameJoin})
	assert.Equal(t, ws.FrameError, alice.read(t).Type)
}

func TestBoard_DisconnectLeavesRoom(t *testing.T) {
	t.Parallel()

	h, base := newServer(t)
	alice := dial(t, base, "board-1")
	waitMembers(t, h, "board-1", 1)

	require.NoError(t, alice.conn.Close(websocket.StatusNormalClosure, "bye"))
	waitMembers(t, h, "board-1", 0)

	_, ok := h.RoomOf(alice.id)
	assert.False(t, ok)
}
