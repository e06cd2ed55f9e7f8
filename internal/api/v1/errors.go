package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
	"github.com/gosuda/taskboard/internal/ledger"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// statusError maps domain failures to HTTP problems. what names the resource
// in 404 messages; action describes the operation in 500 messages.
func statusError(err error, what, action string) error {
	switch {
	case errors.Is(err, ledger.ErrUnknownAssignee):
		return huma.Error404NotFound("assignee not found")
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(what + " not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("version conflict: re-read the task and retry")
	case errors.Is(err, domain.ErrInvalidDuration):
		return huma.Error422UnprocessableEntity("duration must be positive and at most one week")
	case errors.Is(err, domain.ErrNoAssignable):
		return huma.Error422UnprocessableEntity("no users to assign to")
	case errors.Is(err, domain.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("failed to "+action, err)
	}
}

func currentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error401Unauthorized("missing user context")
	}
	return userID, nil
}

// publish broadcasts ev to its room. Delivery never fails the request; an
// error here only means the room id was malformed.
func publish(b Broadcaster, origin string, ev domain.Event) {
	n, err := b.Publish(hub.ConnID(origin), ev.Room, ev)
	if err != nil {
		log.Warn().Err(err).Str("room", ev.Room).Str("type", string(ev.Kind)).Msg("api: broadcast rejected")
		return
	}
	log.Debug().Str("room", ev.Room).Str("type", string(ev.Kind)).Int("delivered", n).Msg("api: broadcast")
}
