// Package balance distributes unassigned, unfinished tasks across the user
// directory.
//
// Users are ordered by their current active load (ties keep directory order)
// and the i-th unassigned task goes to the user at position i mod N of that
// order. Every assignment is a version-checked write; a task edited
// concurrently is skipped and reported, never retried.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// Snapshotter reads the task state a balancing run is computed from.
// domain.TaskStore satisfies this interface.
type Snapshotter interface {
	ListUnassignedActive(ctx context.Context) ([]*domain.Task, error)
	ListAssigned(ctx context.Context) ([]*domain.Task, error)
}

// Writer performs version-checked mutations. *ledger.Ledger satisfies this interface.
type Writer interface {
	Apply(ctx context.Context, id uuid.UUID, m domain.Mutation, expectedVersion int64) (*domain.Task, error)
}

type UserLoad struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Load   int       `json:"load"`
}

type Result struct {
	Assigned  int         `json:"assigned_count"`
	Conflicts []uuid.UUID `json:"conflicts"`
	Loads     []UserLoad  `json:"per_user_load"`
}

// Assignment pairs a task with the user chosen for it.
type Assignment struct {
	Task *domain.Task
	User *domain.User
}

type Balancer struct {
	tasks      Snapshotter
	users      domain.Directory
	writer     Writer
	onAssigned func(*domain.Task)
}

func New(tasks Snapshotter, users domain.Directory, writer Writer) *Balancer {
	return &Balancer{tasks: tasks, users: users, writer: writer}
}

// OnAssigned registers a callback invoked with each successfully assigned
// task, after the write committed.
func (b *Balancer) OnAssigned(fn func(*domain.Task)) {
	b.onAssigned = fn
}

// Balance assigns every currently unassigned, unfinished task. With no such
// tasks it is a no-op; with an empty directory it fails with
// domain.ErrNoAssignable before writing anything.
func (b *Balancer) Balance(ctx context.Context) (*Result, error) {
	unassigned, err := b.tasks.ListUnassignedActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance.Balance: list unassigned: %w", err)
	}

	users, err := b.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance.Balance: list users: %w", err)
	}

	loads, err := b.snapshot(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("balance.Balance: %w", err)
	}
	order := SortByLoad(users, loads)

	res := &Result{Conflicts: []uuid.UUID{}}
	if len(unassigned) == 0 {
		res.Loads = loadsFor(order, loads)
		return res, nil
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("balance.Balance: %w", domain.ErrNoAssignable)
	}

	running := make(map[uuid.UUID]int, len(loads))
	for id, n := range loads {
		running[id] = n
	}

	for _, a := range Plan(order, unassigned) {
		updated, applyErr := b.writer.Apply(ctx, a.Task.ID, domain.AssignTo(a.User.ID), a.Task.Version)
		switch {
		case applyErr == nil:
			running[a.User.ID]++
			res.Assigned++
			if b.onAssigned != nil {
				b.onAssigned(updated)
			}
		case errors.Is(applyErr, domain.ErrConflict), errors.Is(applyErr, domain.ErrNotFound):
			log.Warn().Err(applyErr).Str("task_id", a.Task.ID.String()).Msg("balance: skipping task edited concurrently")
			res.Conflicts = append(res.Conflicts, a.Task.ID)
		default:
			res.Loads = loadsFor(order, running)
			return res, fmt.Errorf("balance.Balance: assign %s: %w", a.Task.ID, applyErr)
		}
	}

	res.Loads = loadsFor(order, running)
	log.Info().
		Int("assigned", res.Assigned).
		Int("conflicts", len(res.Conflicts)).
		Int("users", len(users)).
		Msg("balance: run complete")
	return res, nil
}

// snapshot counts active tasks per directory user. It is recomputed on every
// run; a cached snapshot would skew later runs.
func (b *Balancer) snapshot(ctx context.Context, users []*domain.User) (map[uuid.UUID]int, error) {
	assigned, err := b.tasks.ListAssigned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assigned: %w", err)
	}

	loads := make(map[uuid.UUID]int, len(users))
	for _, u := range users {
		loads[u.ID] = 0
	}
	for _, t := range assigned {
		if t.AssigneeID == nil || !t.Active() {
			continue
		}
		if _, known := loads[*t.AssigneeID]; known {
			loads[*t.AssigneeID]++
		}
	}
	return loads, nil
}

// SortByLoad orders users ascending by load; equal loads keep directory order.
func SortByLoad(users []*domain.User, loads map[uuid.UUID]int) []*domain.User {
	order := append([]*domain.User(nil), users...)
	sort.SliceStable(order, func(i, j int) bool {
		return loads[order[i].ID] < loads[order[j].ID]
	})
	return order
}

// Plan pairs the i-th task with order[i mod len(order)]. order must be non-empty.
func Plan(order []*domain.User, tasks []*domain.Task) []Assignment {
	plan := make([]Assignment, len(tasks))
	for i, t := range tasks {
		plan[i] = Assignment{Task: t, User: order[i%len(order)]}
	}
	return plan
}

func loadsFor(order []*domain.User, counts map[uuid.UUID]int) []UserLoad {
	out := make([]UserLoad, len(order))
	for i, u := range order {
		out[i] = UserLoad{UserID: u.ID, Name: u.Name, Load: counts[u.ID]}
	}
	return out
}
