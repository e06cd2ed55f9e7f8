// Package hub tracks which connection sits in which board room and relays
// board events to the other members of a room.
//
// Delivery is best-effort and at-most-once. Peers that are slow or gone miss
// events; clients reconcile by re-reading the task store.
package hub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// ErrInvalidID is returned for empty connection or room identifiers.
var ErrInvalidID = errors.New("hub: invalid identifier") //nolint:gochecknoglobals // sentinel error

type ConnID string

// Peer is one connected session. Send must not block; it reports false when
// the event was dropped.
type Peer interface {
	ID() ConnID
	Send(ev domain.Event) bool
}

// Forwarder carries locally published events to other instances.
type Forwarder interface {
	Forward(origin ConnID, ev domain.Event)
}

// room guards its own member set. A closed room has been removed from the
// hub's table and must not gain members; joiners retry with a fresh room.
type room struct {
	id      string
	mu      sync.RWMutex
	members map[ConnID]Peer
	closed  bool
}

// membership is the per-connection record; its lock serializes join/leave
// of one connection without touching other connections.
type membership struct {
	mu   sync.Mutex
	peer Peer
	room string
	left bool
}

type Hub struct {
	rooms   sync.Map // string -> *room
	members sync.Map // ConnID -> *membership

	fwdMu     sync.RWMutex
	forwarder Forwarder
}

func New() *Hub {
	return &Hub{}
}

// SetForwarder installs cross-instance fan-out; nil disables it.
func (h *Hub) SetForwarder(f Forwarder) {
	h.fwdMu.Lock()
	h.forwarder = f
	h.fwdMu.Unlock()
}

// Join puts p into roomID, leaving its previous room first. Joining the room
// the peer is already in is a no-op.
func (h *Hub) Join(p Peer, roomID string) error {
	if p == nil || p.ID() == "" || roomID == "" {
		return fmt.Errorf("hub.Join: %w", ErrInvalidID)
	}

	for {
		v, _ := h.members.LoadOrStore(p.ID(), &membership{peer: p})
		m := v.(*membership) //nolint:forcetypeassert // only *membership is stored

		m.mu.Lock()
		if m.left {
			// Lost a race with Leave; the record is gone from the table.
			m.mu.Unlock()
			continue
		}

		m.peer = p
		if m.room == roomID {
			m.mu.Unlock()
			return nil
		}
		if m.room != "" {
			h.removeFromRoom(m.room, p.ID())
		}
		h.addToRoom(roomID, p)
		m.room = roomID
		m.mu.Unlock()

		log.Debug().Str("conn", string(p.ID())).Str("room", roomID).Msg("hub: joined")
		return nil
	}
}

// Leave drops every membership of id. Safe to call repeatedly.
func (h *Hub) Leave(id ConnID) {
	v, ok := h.members.Load(id)
	if !ok {
		return
	}
	m := v.(*membership) //nolint:forcetypeassert // only *membership is stored

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.left {
		return
	}
	if m.room != "" {
		h.removeFromRoom(m.room, id)
		log.Debug().Str("conn", string(id)).Str("room", m.room).Msg("hub: left")
	}
	m.room = ""
	m.left = true
	h.members.CompareAndDelete(id, m)
}

// Publish delivers ev to every member of roomID except origin and returns
// how many peers accepted it. An empty origin delivers to everyone (server
// originated events with no socket behind them).
func (h *Hub) Publish(origin ConnID, roomID string, ev domain.Event) (int, error) {
	if roomID == "" {
		return 0, fmt.Errorf("hub.Publish: %w", ErrInvalidID)
	}
	ev.Room = roomID

	n := h.deliver(origin, roomID, ev)

	h.fwdMu.RLock()
	f := h.forwarder
	h.fwdMu.RUnlock()
	if f != nil {
		f.Forward(origin, ev)
	}
	return n, nil
}

// DeliverRemote hands an event received from another instance to local
// members. It never forwards again.
func (h *Hub) DeliverRemote(origin ConnID, ev domain.Event) int {
	if ev.Room == "" {
		return 0
	}
	return h.deliver(origin, ev.Room, ev)
}

// RoomOf reports the room id currently joined by id.
func (h *Hub) RoomOf(id ConnID) (string, bool) {
	v, ok := h.members.Load(id)
	if !ok {
		return "", false
	}
	m := v.(*membership) //nolint:forcetypeassert // only *membership is stored
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.room, m.room != "" && !m.left
}

// MemberCount returns the number of connections in roomID.
func (h *Hub) MemberCount(roomID string) int {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return 0
	}
	r := v.(*room) //nolint:forcetypeassert // only *room is stored
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// deliver holds the room's read lock for the whole fan-out so a Leave that
// has returned can never be followed by a delivery to that peer.
func (h *Hub) deliver(origin ConnID, roomID string, ev domain.Event) int {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return 0
	}
	r := v.(*room) //nolint:forcetypeassert // only *room is stored

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for id, p := range r.members {
		if id == origin {
			continue
		}
		if p.Send(ev) {
			n++
			continue
		}
		log.Debug().Str("conn", string(id)).Str("room", roomID).Str("kind", string(ev.Kind)).Msg("hub: dropped event for slow peer")
	}
	return n
}

func (h *Hub) addToRoom(roomID string, p Peer) {
	for {
		v, _ := h.rooms.LoadOrStore(roomID, &room{id: roomID, members: make(map[ConnID]Peer)})
		r := v.(*room) //nolint:forcetypeassert // only *room is stored

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}
		r.members[p.ID()] = p
		r.mu.Unlock()
		return
	}
}

func (h *Hub) removeFromRoom(roomID string, id ConnID) {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return
	}
	r := v.(*room) //nolint:forcetypeassert // only *room is stored

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	if len(r.members) == 0 && !r.closed {
		r.closed = true
		h.rooms.CompareAndDelete(roomID, r)
	}
}
