package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/ledger"
)

// ConnectionHeader names the caller's own board socket so broadcasts
// triggered by its REST calls skip it.
const ConnectionHeader = "X-Connection-ID"

type CreateTaskInput struct {
	ConnectionID string `header:"X-Connection-ID" doc:"Caller's WebSocket connection ID"`
	Body         struct {
		Board       string          `json:"board,omitempty" maxLength:"100" doc:"Board ID (default \"default\")"`
		Title       string          `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
		Description string          `json:"description,omitempty" doc:"Task description"`
		Priority    domain.Priority `json:"priority,omitempty" enum:"low,medium,high" doc:"Task priority (default medium)"`
		AssigneeID  *uuid.UUID      `json:"assignee_id,omitempty" doc:"Assigned user ID"`
		DueDate     *time.Time      `json:"due_date,omitempty" doc:"Due date"`
		Labels      []domain.Label  `json:"labels,omitempty" doc:"Labels"`
	}
}

type CreateTaskOutput struct {
	Body *domain.Task
}

type ListTasksInput struct {
	Board string `query:"board" default:"default" doc:"Board ID"`
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type GetTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type GetTaskOutput struct {
	Body *domain.Task
}

type UpdateTaskInput struct {
	ID           uuid.UUID `path:"id" doc:"Task ID"`
	ConnectionID string    `header:"X-Connection-ID" doc:"Caller's WebSocket connection ID"`
	Body         struct {
		ExpectedVersion int64                `json:"expected_version" minimum:"1" doc:"Version the change was computed against"`
		Title           *string              `json:"title,omitempty" minLength:"1" maxLength:"500" doc:"Task title"`
		Description     *string              `json:"description,omitempty" doc:"Task description"`
		Status          *domain.TaskStatus   `json:"status,omitempty" enum:"todo,in-progress,review,done" doc:"Board column"`
		Priority        *domain.Priority     `json:"priority,omitempty" enum:"low,medium,high" doc:"Task priority"`
		AssigneeID      *uuid.UUID           `json:"assignee_id,omitempty" doc:"Assigned user ID"`
		ClearAssignee   bool                 `json:"clear_assignee,omitempty" doc:"Remove the assignee"`
		Labels          *[]domain.Label      `json:"labels,omitempty" doc:"Replacement label set"`
		Attachments     *[]domain.Attachment `json:"attachments,omitempty" doc:"Replacement attachment list"`
		DueDate         *time.Time           `json:"due_date,omitempty" doc:"Due date"`
		ClearDueDate    bool                 `json:"clear_due_date,omitempty" doc:"Remove the due date"`
	}
}

type UpdateTaskOutput struct {
	Body *domain.Task
}

type DeleteTaskInput struct {
	ID           uuid.UUID `path:"id" doc:"Task ID"`
	ConnectionID string    `header:"X-Connection-ID" doc:"Caller's WebSocket connection ID"`
}

func RegisterTaskRoutes(api huma.API, tasks TaskLedger, hub Broadcaster) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a new task",
		Tags:          []string{"Tasks"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTaskInput) (*CreateTaskOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		t, err := tasks.Create(ctx, ledger.CreateInput{
			Board:       input.Body.Board,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			AssigneeID:  input.Body.AssigneeID,
			DueDate:     input.Body.DueDate,
			Labels:      input.Body.Labels,
			CreatedBy:   userID,
		})
		if err != nil {
			return nil, statusError(err, "task", "create task")
		}

		publish(hub, input.ConnectionID, domain.TaskEvent(domain.EventTaskCreated, t))
		return &CreateTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks on a board",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
		list, err := tasks.ListByBoard(ctx, input.Board)
		if err != nil {
			return nil, statusError(err, "board", "list tasks")
		}

		return &ListTasksOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task by ID",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *GetTaskInput) (*GetTaskOutput, error) {
		t, err := tasks.Get(ctx, input.ID)
		if err != nil {
			return nil, statusError(err, "task", "get task")
		}

		return &GetTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Apply a versioned change to a task",
		Description: "Fails with 409 when expected_version is not the task's current version.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*UpdateTaskOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		b := input.Body
		m := domain.Mutation{
			Title:         b.Title,
			Description:   b.Description,
			Status:        b.Status,
			Priority:      b.Priority,
			AssigneeID:    b.AssigneeID,
			ClearAssignee: b.ClearAssignee,
			Labels:        b.Labels,
			Attachments:   b.Attachments,
			DueDate:       b.DueDate,
			ClearDueDate:  b.ClearDueDate,
			By:            userID,
		}

		t, err := applyVersioned(ctx, tasks, hub, input.ConnectionID, input.ID, m, b.ExpectedVersion)
		if err != nil {
			return nil, statusError(err, "task", "update task")
		}

		return &UpdateTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *DeleteTaskInput) (*struct{}, error) {
		t, err := tasks.Delete(ctx, input.ID)
		if err != nil {
			return nil, statusError(err, "task", "delete task")
		}

		publish(hub, input.ConnectionID, domain.DeletedEvent(t.Board, t.ID, tasks.Now()))
		return nil, nil
	})
}

// applyVersioned applies m to the task at expectedVersion and broadcasts the
// result as a move when the column changed, otherwise as an update.
func applyVersioned(ctx context.Context, tasks TaskLedger, hub Broadcaster, origin string, id uuid.UUID, m domain.Mutation, expectedVersion int64) (*domain.Task, error) {
	// The state at expected_version decides between a move and an edit;
	// any other version would conflict on Apply anyway.
	before, err := tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Version != expectedVersion {
		return nil, fmt.Errorf("task %s is at version %d: %w", id, before.Version, domain.ErrConflict)
	}

	t, err := tasks.Apply(ctx, id, m, expectedVersion)
	if err != nil {
		return nil, err
	}

	kind := domain.EventTaskUpdated
	if m.ChangesStatus(before) {
		kind = domain.EventTaskMoved
	}
	publish(hub, origin, domain.TaskEvent(kind, t))
	return t, nil
}
