// Package memory is an in-process TaskStore and Directory used for local
// development and tests. Writers to one task are serialized by that task's
// own lock, so unrelated tasks never contend.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
)

type entry struct {
	mu   sync.Mutex
	task *domain.Task
	seq  uint64 // insertion order
	gone bool
}

type Store struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*entry
	nextSeq uint64

	usersMu sync.RWMutex
	users   []*domain.User
}

var (
	_ domain.TaskStore = (*Store)(nil) //nolint:gochecknoglobals // compile-time check
	_ domain.UserStore = (*Store)(nil) //nolint:gochecknoglobals // compile-time check
)

func New() *Store {
	return &Store{tasks: make(map[uuid.UUID]*entry)}
}

// AddUser appends u to the directory; directory order is insertion order.
func (s *Store) AddUser(u *domain.User) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	cp := *u
	s.users = append(s.users, &cp)
}

// CreateUser adds u to the directory; ids and non-empty emails are unique.
func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	for _, existing := range s.users {
		if existing.ID == u.ID || (u.Email != "" && existing.Email == u.Email) {
			return fmt.Errorf("memory.Store.CreateUser: %w", domain.ErrConflict)
		}
	}
	cp := *u
	s.users = append(s.users, &cp)
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("memory.Store.GetUser: %w", domain.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context) ([]*domain.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	out := make([]*domain.User, len(s.users))
	for i, u := range s.users {
		cp := *u
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("memory.Store.Create: task %s exists: %w", t.ID, domain.ErrConflict)
	}
	s.nextSeq++
	s.tasks[t.ID] = &entry{task: t.Clone(), seq: s.nextSeq}
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("memory.Store.Get: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return nil, fmt.Errorf("memory.Store.Get: %w", domain.ErrNotFound)
	}
	return e.task.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory.Store.Delete: %w", domain.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.gone = true
	return e.task.Clone(), nil
}

func (s *Store) Apply(_ context.Context, id uuid.UUID, m domain.Mutation, expectedVersion int64) (*domain.Task, error) {
	t, err := s.update(id, expectedVersion, func(t *domain.Task) error {
		t.Apply(m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("memory.Store.Apply: %w", err)
	}
	return t, nil
}

func (s *Store) AppendSession(_ context.Context, id uuid.UUID, sess domain.TimeSession, expectedVersion int64) (*domain.Task, error) {
	t, err := s.update(id, expectedVersion, func(t *domain.Task) error { return t.AppendSession(sess) })
	if err != nil {
		return nil, fmt.Errorf("memory.Store.AppendSession: %w", err)
	}
	return t, nil
}

func (s *Store) ListByBoard(_ context.Context, board string) ([]*domain.Task, error) {
	return s.filter(func(t *domain.Task) bool { return t.Board == board }), nil
}

func (s *Store) ListUnassignedActive(_ context.Context) ([]*domain.Task, error) {
	return s.filter(func(t *domain.Task) bool { return t.AssigneeID == nil && t.Active() }), nil
}

func (s *Store) ListAssigned(_ context.Context) ([]*domain.Task, error) {
	return s.filter(func(t *domain.Task) bool { return t.AssigneeID != nil }), nil
}

func (s *Store) ListDueBetween(_ context.Context, from, to time.Time) ([]*domain.Task, error) {
	return s.filter(func(t *domain.Task) bool {
		return t.AssigneeID != nil && t.Active() && t.DueDate != nil &&
			!t.DueDate.Before(from) && !t.DueDate.After(to)
	}), nil
}

func (s *Store) ListAll(_ context.Context) ([]*domain.Task, error) {
	return s.filter(func(*domain.Task) bool { return true }), nil
}

func (s *Store) Search(_ context.Context, f domain.TaskFilter) ([]*domain.Task, error) {
	f = f.Normalize()
	matched := s.filter(f.Matches)
	slices.Reverse(matched)
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *Store) lookup(id uuid.UUID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

// update runs fn on a copy under the task's lock after the version check and
// keeps the copy only when fn succeeds.
func (s *Store) update(id uuid.UUID, expectedVersion int64, fn func(*domain.Task) error) (*domain.Task, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gone {
		return nil, domain.ErrNotFound
	}
	if e.task.Version != expectedVersion {
		return nil, fmt.Errorf("task %s at version %d, expected %d: %w",
			id, e.task.Version, expectedVersion, domain.ErrConflict)
	}

	next := e.task.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	e.task = next
	return next.Clone(), nil
}

// filter snapshots matching tasks in insertion order.
func (s *Store) filter(keep func(*domain.Task) bool) []*domain.Task {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]*domain.Task, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.gone && keep(e.task) {
			out = append(out, e.task.Clone())
		}
		e.mu.Unlock()
	}
	return out
}
