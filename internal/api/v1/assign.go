package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/taskboard/internal/balance"
)

type SmartAssignOutput struct {
	Body *balance.Result
}

type WorkloadOutput struct {
	Body []balance.UserWorkload
}

func RegisterAssignRoutes(api huma.API, balancer WorkloadBalancer) {
	huma.Register(api, huma.Operation{
		OperationID: "smart-assign",
		Method:      http.MethodPost,
		Path:        "/smart-assign",
		Summary:     "Assign every unassigned open task to the least loaded users",
		Description: "Tasks edited while the run is in progress are skipped and listed under conflicts.",
		Tags:        []string{"Assignment"},
	}, func(ctx context.Context, _ *struct{}) (*SmartAssignOutput, error) {
		res, err := balancer.Balance(ctx)
		if err != nil {
			return nil, statusError(err, "user", "balance workload")
		}

		return &SmartAssignOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workload",
		Method:      http.MethodGet,
		Path:        "/workload",
		Summary:     "Per-user task counts",
		Tags:        []string{"Assignment"},
	}, func(ctx context.Context, _ *struct{}) (*WorkloadOutput, error) {
		report, err := balancer.Workload(ctx)
		if err != nil {
			return nil, statusError(err, "user", "load workload")
		}

		return &WorkloadOutput{Body: report}, nil
	})
}
