package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventTaskCreated EventKind = "task-created"
	EventTaskUpdated EventKind = "task-updated"
	EventTaskDeleted EventKind = "task-deleted"
	EventTaskMoved   EventKind = "task-moved"
	EventTimeUpdated EventKind = "time-updated"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventTaskCreated, EventTaskUpdated, EventTaskDeleted, EventTaskMoved, EventTimeUpdated:
		return true
	default:
		return false
	}
}

// Event is a board notification. Payload is the post-mutation task snapshot,
// or nil for deletions; relayed client events carry their raw JSON instead.
type Event struct {
	Kind    EventKind `json:"type"`
	Room    string    `json:"room"`
	TaskID  uuid.UUID `json:"task_id,omitempty"`
	Payload any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

// TaskEvent builds an event carrying a task snapshot.
func TaskEvent(kind EventKind, t *Task) Event {
	return Event{
		Kind:    kind,
		Room:    t.Board,
		TaskID:  t.ID,
		Payload: t,
		At:      t.UpdatedAt,
	}
}

// DeletedEvent carries only the id of a removed task.
func DeletedEvent(board string, id uuid.UUID, at time.Time) Event {
	return Event{
		Kind:   EventTaskDeleted,
		Room:   board,
		TaskID: id,
		At:     at,
	}
}
