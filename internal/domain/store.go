package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStore is the durable task record store. Apply and AppendSession are
// compare-and-swap on Version: they fail with ErrConflict when the stored
// version differs from expectedVersion, and with ErrNotFound for unknown ids.
// Writers to the same id must be serialized.
type TaskStore interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByBoard(ctx context.Context, board string) ([]*Task, error)
	Delete(ctx context.Context, id uuid.UUID) (*Task, error)

	Apply(ctx context.Context, id uuid.UUID, m Mutation, expectedVersion int64) (*Task, error)
	AppendSession(ctx context.Context, id uuid.UUID, s TimeSession, expectedVersion int64) (*Task, error)

	// ListUnassignedActive returns tasks with no assignee that are not done,
	// in stored (creation) order.
	ListUnassignedActive(ctx context.Context) ([]*Task, error)
	// ListAssigned returns every task that has an assignee, done or not.
	ListAssigned(ctx context.Context) ([]*Task, error)
	// ListDueBetween returns active assigned tasks whose due date is in [from, to].
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*Task, error)
	// ListAll returns every task in creation order.
	ListAll(ctx context.Context) ([]*Task, error)
	// Search returns the tasks matching f, newest first, at most f.Limit.
	Search(ctx context.Context, f TaskFilter) ([]*Task, error)
}

// Search result bounds.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

// TaskFilter selects tasks for Search. Zero fields match everything; Query
// matches title or description case-insensitively as a plain substring.
type TaskFilter struct {
	Board      string
	Query      string
	Status     TaskStatus
	Priority   Priority
	AssigneeID *uuid.UUID
	Limit      int
}

// Normalize trims the query and clamps Limit into [1, MaxSearchLimit].
func (f TaskFilter) Normalize() TaskFilter {
	f.Query = strings.TrimSpace(f.Query)
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		f.Limit = MaxSearchLimit
	}
	return f
}

// Matches reports whether t passes every set field of f.
func (f TaskFilter) Matches(t *Task) bool {
	if f.Board != "" && t.Board != f.Board {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}
