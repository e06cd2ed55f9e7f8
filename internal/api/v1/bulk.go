package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/ledger"
)

const (
	BulkDelete = "delete"
	BulkUpdate = "update"
	BulkAssign = "assign"
)

// Per-item outcomes of a bulk request.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

type BulkItem struct {
	ID              uuid.UUID `json:"id" doc:"Task ID"`
	ExpectedVersion int64     `json:"expected_version,omitempty" doc:"Required for update and assign"`
}

type BulkData struct {
	Status     *domain.TaskStatus `json:"status,omitempty" enum:"todo,in-progress,review,done" doc:"Board column"`
	Priority   *domain.Priority   `json:"priority,omitempty" enum:"low,medium,high" doc:"Task priority"`
	AssigneeID *uuid.UUID         `json:"assignee_id,omitempty" doc:"Assigned user ID"`
}

type BulkInput struct {
	ConnectionID string `header:"X-Connection-ID" doc:"Caller's WebSocket connection ID"`
	Body         struct {
		Action string     `json:"action" enum:"delete,update,assign" doc:"Operation applied to every item"`
		Items  []BulkItem `json:"items" minItems:"1" maxItems:"100" doc:"Target tasks"`
		Data   *BulkData  `json:"data,omitempty" doc:"Fields for update; assignee_id for assign"`
	}
}

type BulkResult struct {
	ID      uuid.UUID `json:"id"`
	Outcome string    `json:"outcome" enum:"ok,conflict,not_found,invalid,failed"`
	Version int64     `json:"version,omitempty" doc:"Task version after the change"`
	Error   string    `json:"error,omitempty"`
}

type BulkOutput struct {
	Body struct {
		Action    string       `json:"action"`
		Succeeded int          `json:"succeeded"`
		Failed    int          `json:"failed"`
		Results   []BulkResult `json:"results"`
	}
}

// RegisterBulkRoutes mounts the bulk endpoint. Items are processed in order
// and independently: each write is version-checked and broadcast on its own,
// so one stale item never blocks the rest.
func RegisterBulkRoutes(api huma.API, tasks TaskLedger, hub Broadcaster) {
	huma.Register(api, huma.Operation{
		OperationID: "bulk-tasks",
		Method:      http.MethodPost,
		Path:        "/bulk",
		Summary:     "Delete, update or assign several tasks",
		Description: "Update and assign need expected_version on every item. The response reports an outcome per item.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *BulkInput) (*BulkOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		b := input.Body
		var m domain.Mutation
		if b.Action != BulkDelete {
			m, err = bulkMutation(b.Action, b.Data, b.Items)
			if err != nil {
				return nil, err
			}
			m.By = userID
		}

		out := &BulkOutput{}
		out.Body.Action = b.Action
		out.Body.Results = make([]BulkResult, 0, len(b.Items))
		for _, item := range b.Items {
			var t *domain.Task
			if b.Action == BulkDelete {
				t, err = tasks.Delete(ctx, item.ID)
				if err == nil {
					publish(hub, input.ConnectionID, domain.DeletedEvent(t.Board, t.ID, tasks.Now()))
				}
			} else {
				t, err = applyVersioned(ctx, tasks, hub, input.ConnectionID, item.ID, m, item.ExpectedVersion)
			}

			res := bulkResult(item.ID, err)
			if err == nil {
				out.Body.Succeeded++
				if b.Action != BulkDelete {
					res.Version = t.Version
				}
			} else {
				out.Body.Failed++
			}
			out.Body.Results = append(out.Body.Results, res)
		}

		log.Info().Str("action", b.Action).Int("succeeded", out.Body.Succeeded).Int("failed", out.Body.Failed).Msg("api: bulk")
		return out, nil
	})
}

// bulkMutation validates the shared payload of an update or assign request.
func bulkMutation(action string, data *BulkData, items []BulkItem) (domain.Mutation, error) {
	for _, item := range items {
		if item.ExpectedVersion < 1 {
			return domain.Mutation{}, huma.Error422UnprocessableEntity("expected_version is required on every item for " + action)
		}
	}
	if data == nil {
		data = &BulkData{}
	}

	switch action {
	case BulkAssign:
		if data.AssigneeID == nil {
			return domain.Mutation{}, huma.Error422UnprocessableEntity("assign needs data.assignee_id")
		}
		return domain.Mutation{AssigneeID: data.AssigneeID}, nil
	default:
		if data.Status == nil && data.Priority == nil && data.AssigneeID == nil {
			return domain.Mutation{}, huma.Error422UnprocessableEntity("update needs at least one field in data")
		}
		return domain.Mutation{Status: data.Status, Priority: data.Priority, AssigneeID: data.AssigneeID}, nil
	}
}

func bulkResult(id uuid.UUID, err error) BulkResult {
	res := BulkResult{ID: id, Outcome: OutcomeOK}
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrUnknownAssignee):
		res.Outcome, res.Error = OutcomeInvalid, "assignee not found"
	case errors.Is(err, domain.ErrNotFound):
		res.Outcome, res.Error = OutcomeNotFound, "task not found"
	case errors.Is(err, domain.ErrConflict):
		res.Outcome, res.Error = OutcomeConflict, "version conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		res.Outcome, res.Error = OutcomeInvalid, err.Error()
	default:
		log.Error().Err(err).Str("task_id", id.String()).Msg("api: bulk item failed")
		res.Outcome, res.Error = OutcomeFailed, "internal error"
	}
	return res
}
