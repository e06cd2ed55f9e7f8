package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

const taskColumns = `id, board, title, description, status, priority, assignee_id, created_by, updated_by,
	labels, attachments, time_sessions, total_time_ns, due_date, completed_at, version, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

var _ domain.TaskStore = (*TaskRepo)(nil) //nolint:gochecknoglobals // compile-time check

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	doc, err := encodeDocs(t)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		t.ID, t.Board, t.Title, t.Description, t.Status, t.Priority,
		t.AssigneeID, nilIfZero(t.CreatedBy), t.UpdatedBy,
		doc.labels, doc.attachments, doc.sessions, int64(t.TimeTracking.TotalTime),
		t.DueDate, t.CompletedAt, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	return nil
}

func (r *TaskRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Get: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) ListByBoard(ctx context.Context, board string) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListByBoard",
		`SELECT `+taskColumns+` FROM tasks WHERE board = $1 ORDER BY created_at, id`, board)
}

func (r *TaskRepo) ListUnassignedActive(ctx context.Context) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListUnassignedActive",
		`SELECT `+taskColumns+` FROM tasks
		 WHERE assignee_id IS NULL AND status <> 'done'
		 ORDER BY created_at, id`)
}

func (r *TaskRepo) ListAssigned(ctx context.Context) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListAssigned",
		`SELECT `+taskColumns+` FROM tasks WHERE assignee_id IS NOT NULL ORDER BY created_at, id`)
}

func (r *TaskRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListDueBetween",
		`SELECT `+taskColumns+` FROM tasks
		 WHERE assignee_id IS NOT NULL AND status <> 'done'
		   AND due_date BETWEEN $1 AND $2
		 ORDER BY due_date, id`, from, to)
}

func (r *TaskRepo) ListAll(ctx context.Context) ([]*domain.Task, error) {
	return r.list(ctx, "taskRepo.ListAll",
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
}

func (r *TaskRepo) Search(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error) {
	query, args := searchQuery(f.Normalize())
	return r.list(ctx, "taskRepo.Search", query, args...)
}

// searchQuery builds the filtered SELECT for Search. Every value is bound as
// a parameter.
func searchQuery(f domain.TaskFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Board != "" {
		where = append(where, "board = "+bind(f.Board))
	}
	if f.Status != "" {
		where = append(where, "status = "+bind(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = "+bind(f.Priority))
	}
	if f.AssigneeID != nil {
		where = append(where, "assignee_id = "+bind(*f.AssigneeID))
	}
	if f.Query != "" {
		p := bind("%" + likeEscaper.Replace(f.Query) + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id LIMIT ` + bind(f.Limit)
	return q, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`) //nolint:gochecknoglobals // stateless replacer

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx,
		`DELETE FROM tasks WHERE id = $1 RETURNING `+taskColumns, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Delete: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) Apply(ctx context.Context, id uuid.UUID, m domain.Mutation, expectedVersion int64) (*domain.Task, error) {
	t, err := r.update(ctx, id, expectedVersion, func(t *domain.Task) error {
		t.Apply(m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("taskRepo.Apply: %w", err)
	}
	return t, nil
}

func (r *TaskRepo) AppendSession(ctx context.Context, id uuid.UUID, s domain.TimeSession, expectedVersion int64) (*domain.Task, error) {
	t, err := r.update(ctx, id, expectedVersion, func(t *domain.Task) error { return t.AppendSession(s) })
	if err != nil {
		return nil, fmt.Errorf("taskRepo.AppendSession: %w", err)
	}
	return t, nil
}

// update locks the row, checks the version and writes fn's result back in
// one transaction. The UPDATE repeats the version predicate so a row changed
// outside the lock still conflicts.
func (r *TaskRepo) update(ctx context.Context, id uuid.UUID, expectedVersion int64, fn func(*domain.Task) error) (*domain.Task, error) {
	var out *domain.Task

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock: %w", err)
		}
		if t.Version != expectedVersion {
			return fmt.Errorf("task %s at version %d, expected %d: %w",
				id, t.Version, expectedVersion, domain.ErrConflict)
		}

		if err := fn(t); err != nil {
			return err
		}

		doc, err := encodeDocs(t)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4,
			        assignee_id = $5, updated_by = $6, labels = $7, attachments = $8,
			        time_sessions = $9, total_time_ns = $10, due_date = $11, completed_at = $12,
			        version = $13, updated_at = $14
			 WHERE id = $15 AND version = $16`,
			t.Title, t.Description, t.Status, t.Priority,
			t.AssigneeID, t.UpdatedBy, doc.labels, doc.attachments,
			doc.sessions, int64(t.TimeTracking.TotalTime), t.DueDate, t.CompletedAt,
			t.Version, t.UpdatedAt,
			id, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}

		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TaskRepo) list(ctx context.Context, caller, query string, args ...any) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t                             domain.Task
		createdBy                     *uuid.UUID
		labels, attachments, sessions []byte
		totalNS                       int64
	)

	err := row.Scan(
		&t.ID, &t.Board, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &createdBy, &t.UpdatedBy,
		&labels, &attachments, &sessions, &totalNS,
		&t.DueDate, &t.CompletedAt, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if createdBy != nil {
		t.CreatedBy = *createdBy
	}
	t.TimeTracking.TotalTime = time.Duration(totalNS)
	if err := decodeDocs(&t, labels, attachments, sessions); err != nil {
		return nil, err
	}

	return &t, nil
}

type taskDocs struct {
	labels, attachments, sessions []byte
}

func encodeDocs(t *domain.Task) (taskDocs, error) {
	var (
		d   taskDocs
		err error
	)
	if d.labels, err = json.Marshal(nonNil(t.Labels)); err != nil {
		return d, fmt.Errorf("encode labels: %w", err)
	}
	if d.attachments, err = json.Marshal(nonNil(t.Attachments)); err != nil {
		return d, fmt.Errorf("encode attachments: %w", err)
	}
	if d.sessions, err = json.Marshal(nonNil(t.TimeTracking.Sessions)); err != nil {
		return d, fmt.Errorf("encode sessions: %w", err)
	}
	return d, nil
}

func decodeDocs(t *domain.Task, labels, attachments, sessions []byte) error {
	if err := json.Unmarshal(labels, &t.Labels); err != nil {
		return fmt.Errorf("decode labels: %w", err)
	}
	if err := json.Unmarshal(attachments, &t.Attachments); err != nil {
		return fmt.Errorf("decode attachments: %w", err)
	}
	if err := json.Unmarshal(sessions, &t.TimeTracking.Sessions); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
