package balance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
)

type StatusCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Review     int `json:"review"`
	Done       int `json:"done"`
}

type UserWorkload struct {
	UserID         uuid.UUID    `json:"user_id"`
	Name           string       `json:"name"`
	Email          string       `json:"email,omitempty"`
	TotalTasks     int          `json:"total_tasks"`
	ActiveTasks    int          `json:"active_tasks"`
	CompletedTasks int          `json:"completed_tasks"`
	ByStatus       StatusCounts `json:"tasks_by_status"`
}

// Workload reports, in directory order, how many tasks each user holds.
func (b *Balancer) Workload(ctx context.Context) ([]UserWorkload, error) {
	users, err := b.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance.Workload: list users: %w", err)
	}
	assigned, err := b.tasks.ListAssigned(ctx)
	if err != nil {
		return nil, fmt.Errorf("balance.Workload: list assigned: %w", err)
	}

	byUser := make(map[uuid.UUID]*UserWorkload, len(users))
	out := make([]UserWorkload, len(users))
	for i, u := range users {
		out[i] = UserWorkload{UserID: u.ID, Name: u.Name, Email: u.Email}
		byUser[u.ID] = &out[i]
	}

	for _, t := range assigned {
		if t.AssigneeID == nil {
			continue
		}
		w, ok := byUser[*t.AssigneeID]
		if !ok {
			continue
		}
		w.TotalTasks++
		switch t.Status {
		case domain.TaskStatusTodo:
			w.ByStatus.Todo++
		case domain.TaskStatusInProgress:
			w.ByStatus.InProgress++
		case domain.TaskStatusReview:
			w.ByStatus.Review++
		case domain.TaskStatusDone:
			w.ByStatus.Done++
		}
		if t.Active() {
			w.ActiveTasks++
		} else {
			w.CompletedTasks++
		}
	}
	return out, nil
}
