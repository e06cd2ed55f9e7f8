package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
)

type SearchTasksInput struct {
	Query    string            `query:"q" maxLength:"200" doc:"Case-insensitive text matched against title and description"`
	Board    string            `query:"board" maxLength:"100" doc:"Restrict to one board"`
	Status   domain.TaskStatus `query:"status" enum:"todo,in-progress,review,done" doc:"Board column"`
	Priority domain.Priority   `query:"priority" enum:"low,medium,high" doc:"Task priority"`
	Assignee uuid.UUID         `query:"assignee" doc:"Assigned user ID"`
	Limit    int               `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Maximum number of results"`
}

type SearchTasksOutput struct {
	Body []*domain.Task
}

func RegisterSearchRoutes(api huma.API, tasks TaskSearcher) {
	huma.Register(api, huma.Operation{
		OperationID: "search-tasks",
		Method:      http.MethodGet,
		Path:        "/search",
		Summary:     "Search tasks across boards",
		Description: "Results are newest first. Every filter is optional.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *SearchTasksInput) (*SearchTasksOutput, error) {
		f := domain.TaskFilter{
			Board:    input.Board,
			Query:    input.Query,
			Status:   input.Status,
			Priority: input.Priority,
			Limit:    input.Limit,
		}
		if input.Assignee != uuid.Nil {
			f.AssigneeID = &input.Assignee
		}

		list, err := tasks.Search(ctx, f)
		if err != nil {
			return nil, statusError(err, "task", "search tasks")
		}
		if list == nil {
			list = []*domain.Task{}
		}

		return &SearchTasksOutput{Body: list}, nil
	})
}
