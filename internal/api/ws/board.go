// Package ws serves board WebSocket sessions. Each connection is a hub peer
// with a bounded outbound queue drained by its own writer goroutine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// Frame types the server sends besides board events.
const (
	FrameHello  = "hello"
	FrameJoined = "joined"
	FramePong   = "pong"
	FrameError  = "error"
)

// Frame types the client may send besides board events.
const (
	FrameJoin = "join"
	FramePing = "ping"
)

// ControlFrame is a session-level message that is not a board event.
type ControlFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id,omitempty"`
	Room         string `json:"room,omitempty"`
	Message      string `json:"message,omitempty"`
}

// ClientFrame is anything a client sends: a join, a ping, or a board event
// to relay to the rest of the room.
type ClientFrame struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	TaskID  uuid.UUID       `json:"task_id,omitempty"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// peer adapts one connection to hub.Peer. The queue is never closed; the
// writer stops on context cancellation instead.
type peer struct {
	id  hub.ConnID
	out chan any
}

func (p *peer) ID() hub.ConnID { return p.id }

func (p *peer) Send(ev domain.Event) bool {
	return p.enqueue(ev)
}

func (p *peer) enqueue(v any) bool {
	select {
	case p.out <- v:
		return true
	default:
		return false
	}
}

type Handler struct {
	hub            *hub.Hub
	buffer         int
	pingInterval   time.Duration
	originPatterns []string
}

// NewHandler binds board sessions to h. buffer bounds each connection's
// outbound queue; a non-positive pingInterval disables keepalive pings.
func NewHandler(h *hub.Hub, buffer int, pingInterval time.Duration, originPatterns []string) *Handler {
	if buffer <= 0 {
		buffer = 64
	}
	return &Handler{hub: h, buffer: buffer, pingInterval: pingInterval, originPatterns: originPatterns}
}

// ServeBoard upgrades the request and joins the connection to the board
// named by the boardID path parameter. The first frame is a hello carrying
// the connection ID, which REST calls echo in X-Connection-ID.
func (h *Handler) ServeBoard(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	if boardID == "" {
		http.Error(w, "missing board id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	p := &peer{id: hub.ConnID(uuid.NewString()), out: make(chan any, h.buffer)}
	if err := h.hub.Join(p, boardID); err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "invalid board")
		return
	}
	defer h.hub.Leave(p.id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p.enqueue(ControlFrame{Type: FrameHello, ConnectionID: string(p.id), Room: boardID})
	go h.writeLoop(ctx, cancel, conn, p)

	log.Debug().Str("conn_id", string(p.id)).Str("board", boardID).Msg("ws: session opened")
	err = h.readLoop(ctx, conn, p)

	status := websocket.CloseStatus(err)
	switch {
	case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway, errors.Is(err, context.Canceled):
		log.Debug().Str("conn_id", string(p.id)).Msg("ws: session closed")
	default:
		log.Debug().Err(err).Str("conn_id", string(p.id)).Msg("ws: session ended")
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, p *peer) error {
	for {
		var f ClientFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				p.enqueue(ControlFrame{Type: FrameError, Message: "malformed frame"})
				continue
			}
			return err
		}
		h.handle(p, f)
	}
}

func (h *Handler) handle(p *peer, f ClientFrame) {
	switch f.Type {
	case FramePing:
		p.enqueue(ControlFrame{Type: FramePong})

	case FrameJoin:
		if err := h.hub.Join(p, f.Room); err != nil {
			p.enqueue(ControlFrame{Type: FrameError, Message: "invalid room"})
			return
		}
		p.enqueue(ControlFrame{Type: FrameJoined, Room: f.Room})

	default:
		kind := domain.EventKind(f.Type)
		if !kind.Valid() {
			p.enqueue(ControlFrame{Type: FrameError, Message: "unknown frame type " + f.Type})
			return
		}

		room := f.Room
		if room == "" {
			current, ok := h.hub.RoomOf(p.id)
			if !ok {
				p.enqueue(ControlFrame{Type: FrameError, Message: "not in a room"})
				return
			}
			room = current
		}

		ev := domain.Event{Kind: kind, Room: room, TaskID: f.TaskID, At: time.Now()}
		if len(f.Payload) > 0 {
			ev.Payload = f.Payload
		}
		if _, err := h.hub.Publish(p.id, room, ev); err != nil {
			p.enqueue(ControlFrame{Type: FrameError, Message: "invalid room"})
		}
	}
}

// writeLoop drains the peer's queue and keeps the connection alive with
// pings. Any write failure tears the session down.
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, p *peer) {
	defer cancel()

	var tick <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-p.out:
			wctx, wcancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(wctx, conn, msg)
			wcancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", string(p.id)).Msg("ws: write failed")
				return
			}

		case <-tick:
			pctx, pcancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", string(p.id)).Msg("ws: ping failed")
				return
			}
		}
	}
}
