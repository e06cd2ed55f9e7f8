package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

type CreateUserInput struct {
	Body struct {
		Name    string `json:"name" minLength:"1" maxLength:"200" doc:"Display name"`
		Email   string `json:"email,omitempty" format:"email" doc:"Email address"`
		SlackID string `json:"slack_id,omitempty" doc:"Slack member ID for reminders"`
	}
}

type CreateUserOutput struct {
	Body *domain.User
}

type ListUsersOutput struct {
	Body []*domain.User
}

type GetMeOutput struct {
	Body struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
	}
}

// RegisterUserRoutes exposes the assignment directory. Only admins may add users.
func RegisterUserRoutes(api huma.API, users domain.UserStore) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Add a user to the assignment directory",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateUserInput) (*CreateUserOutput, error) {
		if role, _ := middleware.RoleFromContext(ctx); role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		u := &domain.User{
			ID:        uuid.New(),
			Name:      input.Body.Name,
			Email:     input.Body.Email,
			SlackID:   input.Body.SlackID,
			CreatedAt: time.Now(),
		}
		if err := users.CreateUser(ctx, u); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("user already exists")
			}
			return nil, statusError(err, "user", "create user")
		}

		return &CreateUserOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List the assignment directory",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		list, err := users.ListUsers(ctx)
		if err != nil {
			return nil, statusError(err, "user", "list users")
		}

		return &ListUsersOutput{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Identity carried by the bearer token",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*GetMeOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		out := &GetMeOutput{}
		out.Body.UserID = userID
		out.Body.Role, _ = middleware.RoleFromContext(ctx)
		return out, nil
	})
}
