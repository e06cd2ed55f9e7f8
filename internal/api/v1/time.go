package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/timetrack"
)

type RecordTimeInput struct {
	ID           uuid.UUID `path:"id" doc:"Task ID"`
	ConnectionID string    `header:"X-Connection-ID" doc:"Caller's WebSocket connection ID"`
	Body         struct {
		Duration        float64 `json:"duration" maximum:"604800" doc:"Seconds worked; positive and at most one week"`
		ExpectedVersion int64   `json:"expected_version" minimum:"1" doc:"Version the session was recorded against"`
	}
}

type TimeTotalBody struct {
	TaskID    uuid.UUID `json:"task_id"`
	Version   int64     `json:"version"`
	TotalTime float64   `json:"total_time" doc:"Total tracked seconds"`
}

type RecordTimeOutput struct {
	Body TimeTotalBody
}

type GetTimeInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type UserTime struct {
	UserID    uuid.UUID `json:"user_id"`
	TotalTime float64   `json:"total_time" doc:"Seconds"`
}

type GetTimeOutput struct {
	Body struct {
		TaskID    uuid.UUID            `json:"task_id"`
		TotalTime float64              `json:"total_time" doc:"Total tracked seconds"`
		Sessions  []domain.TimeSession `json:"sessions"`
		ByUser    []UserTime           `json:"by_user"`
	}
}

func RegisterTimeRoutes(api huma.API, tasks TaskLedger, recorder TimeRecorder, hub Broadcaster) {
	huma.Register(api, huma.Operation{
		OperationID: "record-time-session",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/time",
		Summary:     "Record a work session against a task",
		Tags:        []string{"Time"},
	}, func(ctx context.Context, input *RecordTimeInput) (*RecordTimeOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		t, err := recorder.Record(ctx, input.ID, userID, domain.FromSeconds(input.Body.Duration), input.Body.ExpectedVersion)
		if err != nil {
			return nil, statusError(err, "task", "record time")
		}

		publish(hub, input.ConnectionID, domain.TaskEvent(domain.EventTimeUpdated, t))

		return &RecordTimeOutput{Body: TimeTotalBody{
			TaskID:    t.ID,
			Version:   t.Version,
			TotalTime: domain.Seconds(t.TimeTracking.TotalTime),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-time-summary",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/time",
		Summary:     "Summarize time tracked on a task",
		Tags:        []string{"Time"},
	}, func(ctx context.Context, input *GetTimeInput) (*GetTimeOutput, error) {
		t, err := tasks.Get(ctx, input.ID)
		if err != nil {
			return nil, statusError(err, "task", "get time summary")
		}

		s := timetrack.Summarize(t)
		out := &GetTimeOutput{}
		out.Body.TaskID = s.TaskID
		out.Body.TotalTime = domain.Seconds(s.TotalTime)
		out.Body.Sessions = s.Sessions
		if out.Body.Sessions == nil {
			out.Body.Sessions = []domain.TimeSession{}
		}
		out.Body.ByUser = make([]UserTime, 0, len(s.ByUser))
		seen := make(map[uuid.UUID]bool, len(s.ByUser))
		for _, sess := range s.Sessions {
			if seen[sess.UserID] {
				continue
			}
			seen[sess.UserID] = true
			out.Body.ByUser = append(out.Body.ByUser, UserTime{UserID: sess.UserID, TotalTime: domain.Seconds(s.ByUser[sess.UserID])})
		}

		return out, nil
	})
}
