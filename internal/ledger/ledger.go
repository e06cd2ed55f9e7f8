// Package ledger is the versioned write path for tasks. Every accepted
// mutation advances the task's version by exactly one; a stale expected
// version fails with domain.ErrConflict and is never retried here.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// ErrUnknownAssignee is returned when a write names an assignee that is not
// in the user directory. It matches domain.ErrNotFound.
var ErrUnknownAssignee = fmt.Errorf("unknown assignee: %w", domain.ErrNotFound) //nolint:gochecknoglobals // sentinel error

// UserLookup resolves directory users. domain.UserStore satisfies this interface.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Ledger struct {
	store domain.TaskStore
	users UserLookup
	now   func() time.Time
}

func New(store domain.TaskStore, users UserLookup) *Ledger {
	return &Ledger{store: store, users: users, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CreateInput describes a new task.
type CreateInput struct {
	Board       string
	Title       string
	Description string
	Priority    domain.Priority
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
	Labels      []domain.Label
	CreatedBy   uuid.UUID
}

func (l *Ledger) Create(ctx context.Context, in CreateInput) (*domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("ledger.Create: empty title: %w", domain.ErrInvalidInput)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return nil, fmt.Errorf("ledger.Create: unknown priority %q: %w", in.Priority, domain.ErrInvalidInput)
	}

	if err := l.checkAssignee(ctx, in.AssigneeID); err != nil {
		return nil, fmt.Errorf("ledger.Create: %w", err)
	}

	t := domain.NewTask(uuid.New(), in.Board, in.Title, in.CreatedBy, l.now())
	t.Description = in.Description
	if in.Priority != "" {
		t.Priority = in.Priority
	}
	t.AssigneeID = in.AssigneeID
	t.DueDate = in.DueDate
	if in.Labels != nil {
		t.Labels = in.Labels
	}

	if err := l.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("ledger.Create: %w", err)
	}
	return t, nil
}

// Apply performs m on task id if its stored version equals expectedVersion.
func (l *Ledger) Apply(ctx context.Context, id uuid.UUID, m domain.Mutation, expectedVersion int64) (*domain.Task, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("ledger.Apply: %w", err)
	}
	if !m.ClearAssignee {
		if err := l.checkAssignee(ctx, m.AssigneeID); err != nil {
			return nil, fmt.Errorf("ledger.Apply: %w", err)
		}
	}
	m.At = l.now()

	t, err := l.store.Apply(ctx, id, m, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("ledger.Apply: %w", err)
	}

	log.Debug().
		Str("task_id", id.String()).
		Int64("version", t.Version).
		Msg("ledger: mutation applied")
	return t, nil
}

// AppendSession is the aggregator's write path; it shares Apply's atomicity.
func (l *Ledger) AppendSession(ctx context.Context, id uuid.UUID, s domain.TimeSession, expectedVersion int64) (*domain.Task, error) {
	t, err := l.store.AppendSession(ctx, id, s, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("ledger.AppendSession: %w", err)
	}
	return t, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger.Get: %w", err)
	}
	return t, nil
}

func (l *Ledger) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := l.store.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger.Delete: %w", err)
	}
	return t, nil
}

// Now is the ledger's clock, shared with the aggregator so sessions and
// mutations are stamped from one source.
func (l *Ledger) Now() time.Time { return l.now() }

func (l *Ledger) ListByBoard(ctx context.Context, board string) ([]*domain.Task, error) {
	if board == "" {
		board = domain.DefaultBoard
	}
	tasks, err := l.store.ListByBoard(ctx, board)
	if err != nil {
		return nil, fmt.Errorf("ledger.ListByBoard: %w", err)
	}
	return tasks, nil
}

// ListAll returns every task in creation order.
func (l *Ledger) ListAll(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := l.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger.ListAll: %w", err)
	}
	return tasks, nil
}

// Search returns tasks matching f, newest first.
func (l *Ledger) Search(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error) {
	tasks, err := l.store.Search(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("ledger.Search: %w", err)
	}
	return tasks, nil
}

func (l *Ledger) checkAssignee(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	_, err := l.users.GetUser(ctx, *id)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", id, ErrUnknownAssignee)
	}
	if err != nil {
		return fmt.Errorf("resolve assignee: %w", err)
	}
	return nil
}
