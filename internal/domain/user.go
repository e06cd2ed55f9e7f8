package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	SlackID   string    `json:"-"` // empty when the user has no linked Slack account
	CreatedAt time.Time `json:"created_at"`
}

// Directory lists the users that work can be assigned to. The order must be
// stable across calls; the balancer uses it to break load ties.
type Directory interface {
	ListUsers(ctx context.Context) ([]*User, error)
}

// UserStore manages directory membership.
type UserStore interface {
	Directory
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}
