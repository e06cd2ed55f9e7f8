package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	redisstore "github.com/gosuda/taskboard/internal/store/redis"
)

// PubSub abstracts the Redis operations used by the relay.
// *redisstore.PubSub satisfies this interface.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (<-chan []byte, func(), error)
}

type envelope struct {
	Instance string          `json:"instance"`
	Origin   ConnID          `json:"origin,omitempty"`
	Event    json.RawMessage `json:"event"`
}

type outbound struct {
	origin ConnID
	ev     domain.Event
}

// Relay fans hub events out to other service instances over Redis and
// delivers their events to local members. Messages carry the publishing
// instance id so an instance ignores its own echoes.
type Relay struct {
	hub      *Hub
	ps       PubSub
	instance string
	out      chan outbound
	ready    chan struct{}
}

func NewRelay(h *Hub, ps PubSub, instance string, buffer int) *Relay {
	if buffer < 1 {
		buffer = 1
	}
	return &Relay{
		hub:      h,
		ps:       ps,
		instance: instance,
		out:      make(chan outbound, buffer),
		ready:    make(chan struct{}),
	}
}

// Forward queues ev for publication without blocking; when the queue is full
// the event is dropped like any other best-effort delivery.
func (r *Relay) Forward(origin ConnID, ev domain.Event) {
	select {
	case r.out <- outbound{origin: origin, ev: ev}:
	default:
		log.Warn().Str("room", ev.Room).Str("kind", string(ev.Kind)).Msg("relay: outbound queue full, dropping event")
	}
}

// Ready is closed once the Redis subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run subscribes to every room channel and pumps events both ways until ctx
// is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	messages, cleanup, err := r.ps.PSubscribe(ctx, redisstore.RoomPattern)
	if err != nil {
		return fmt.Errorf("hub.Relay.Run: %w", err)
	}
	defer cleanup()
	close(r.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-r.out:
			r.publish(ctx, o)
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.receive(msg)
		}
	}
}

func (r *Relay) publish(ctx context.Context, o outbound) {
	ev, err := json.Marshal(o.ev)
	if err != nil {
		log.Error().Err(err).Msg("relay: marshal event")
		return
	}
	payload, err := json.Marshal(envelope{Instance: r.instance, Origin: o.origin, Event: ev})
	if err != nil {
		log.Error().Err(err).Msg("relay: marshal envelope")
		return
	}
	if err := r.ps.Publish(ctx, redisstore.RoomChannel(o.ev.Room), payload); err != nil {
		log.Error().Err(err).Str("room", o.ev.Room).Msg("relay: publish")
	}
}

func (r *Relay) receive(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Warn().Err(err).Msg("relay: malformed envelope")
		return
	}
	if env.Instance == r.instance {
		return
	}

	var ev struct {
		domain.Event
		Payload json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		log.Warn().Err(err).Msg("relay: malformed event")
		return
	}
	out := ev.Event
	if len(ev.Payload) > 0 {
		out.Payload = ev.Payload
	}
	r.hub.DeliverRemote(env.Origin, out)
}
