package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

const uniqueViolation = "23505"

type UserRepo struct {
	pool *pgxpool.Pool
}

var _ domain.UserStore = (*UserRepo)(nil) //nolint:gochecknoglobals // compile-time check

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, slack_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, nilIfEmpty(u.Email), nilIfEmpty(u.SlackID), u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("userRepo.CreateUser: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("userRepo.CreateUser: %w", err)
	}

	return nil
}

func (r *UserRepo) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	var email, slackID *string

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, slack_id, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &email, &slackID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetUser: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetUser: %w", err)
	}

	u.Email = derefStr(email)
	u.SlackID = derefStr(slackID)

	return &u, nil
}

// ListUsers returns the directory ordered by creation time, then id, which
// keeps the order stable across calls.
func (r *UserRepo) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, slack_id, created_at FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListUsers: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		var u domain.User
		var email, slackID *string

		err = rows.Scan(&u.ID, &u.Name, &email, &slackID, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("userRepo.ListUsers: scan: %w", err)
		}

		u.Email = derefStr(email)
		u.SlackID = derefStr(slackID)
		users = append(users, &u)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListUsers: rows: %w", err)
	}

	return users, nil
}

// --- Helpers ---

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
