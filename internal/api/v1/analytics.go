package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/analytics"
)

type AnalyticsInput struct {
	Range analytics.Range `query:"range" enum:"week,month,quarter" default:"week" doc:"Completion window"`
}

type AnalyticsOutput struct {
	Body *analytics.Report
}

type UserAnalyticsInput struct {
	ID    uuid.UUID       `path:"id" doc:"User ID"`
	Range analytics.Range `query:"range" enum:"week,month,quarter" default:"week" doc:"Completion window"`
}

type UserAnalyticsOutput struct {
	Body *analytics.UserReport
}

func RegisterAnalyticsRoutes(api huma.API, reports Reporter) {
	huma.Register(api, huma.Operation{
		OperationID: "get-analytics",
		Method:      http.MethodGet,
		Path:        "/analytics",
		Summary:     "Completion, productivity and time statistics",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *AnalyticsInput) (*AnalyticsOutput, error) {
		rep, err := reports.Overview(ctx, input.Range)
		if err != nil {
			return nil, statusError(err, "report", "compute analytics")
		}
		return &AnalyticsOutput{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user-analytics",
		Method:      http.MethodGet,
		Path:        "/analytics/users/{id}",
		Summary:     "Statistics for one user",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *UserAnalyticsInput) (*UserAnalyticsOutput, error) {
		rep, err := reports.ForUser(ctx, input.ID, input.Range)
		if err != nil {
			return nil, statusError(err, "user", "compute user analytics")
		}
		return &UserAnalyticsOutput{Body: rep}, nil
	})
}
