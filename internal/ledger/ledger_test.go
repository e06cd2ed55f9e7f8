package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/ledger"
	"github.com/gosuda/taskboard/internal/store/memory"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newMemLedger() *ledger.Ledger {
	st := memory.New()
	return ledger.New(st, st)
}

func newLedger(t *testing.T) (*ledger.Ledger, *domain.Task) {
	t.Helper()

	l := newMemLedger()
	task, err := l.Create(context.Background(), ledger.CreateInput{Board: "board-1", Title: "card"})
	require.NoError(t, err)
	return l, task
}

func TestLedger_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l := newMemLedger().WithClock(fixedClock(at))

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		task, err := l.Create(ctx, ledger.CreateInput{Title: "write docs"})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultBoard, task.Board)
		assert.Equal(t, domain.TaskStatusTodo, task.Status)
		assert.Equal(t, domain.PriorityMedium, task.Priority)
		assert.Equal(t, domain.InitialVersion, task.Version)
		assert.Equal(t, at, task.CreatedAt)
		assert.Nil(t, task.CompletedAt)
	})

	t.Run("rejects blank title", func(t *testing.T) {
		t.Parallel()

		_, err := l.Create(ctx, ledger.CreateInput{Title: " "})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		t.Parallel()

		_, err := l.Create(ctx, ledger.CreateInput{Title: "x", Priority: "urgent"})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLedger_AssigneeMustBeInDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memory.New()
	ada := &domain.User{ID: uuid.New(), Name: "Ada"}
	st.AddUser(ada)
	l := ledger.New(st, st)

	stranger := uuid.New()
	_, err := l.Create(ctx, ledger.CreateInput{Title: "x", AssigneeID: &stranger})
	require.ErrorIs(t, err, ledger.ErrUnknownAssignee)
	require.ErrorIs(t, err, domain.ErrNotFound)

	task, err := l.Create(ctx, ledger.CreateInput{Title: "y", AssigneeID: &ada.ID})
	require.NoError(t, err)
	require.NotNil(t, task.AssigneeID)
	assert.Equal(t, ada.ID, *task.AssigneeID)

	_, err = l.Apply(ctx, task.ID, domain.AssignTo(stranger), task.Version)
	require.ErrorIs(t, err, ledger.ErrUnknownAssignee)

	current, err := l.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Version, current.Version, "rejected write leaves the task untouched")
	assert.Equal(t, ada.ID, *current.AssigneeID)

	// Unknown ids are ignored when the assignee is being cleared.
	cleared, err := l.Apply(ctx, task.ID, domain.Mutation{AssigneeID: &stranger, ClearAssignee: true}, task.Version)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssigneeID)

	// The rejected create stored nothing.
	open, err := st.ListUnassignedActive(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, task.ID, open[0].ID)
}

func TestLedger_Apply_AttachmentsAreCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newMemLedger()
	task, err := l.Create(ctx, ledger.CreateInput{Title: "files"})
	require.NoError(t, err)

	atts := []domain.Attachment{{ID: "a-1", URL: "https://files.example/a", Metadata: map[string]string{"mimetype": "text/plain"}}}
	_, err = l.Apply(ctx, task.ID, domain.Mutation{Attachments: &atts}, task.Version)
	require.NoError(t, err)

	atts[0].Metadata["mimetype"] = "changed"

	got, err := l.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "text/plain", got.Attachments[0].Metadata["mimetype"])
}

func TestLedger_Apply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("bumps version by one", func(t *testing.T) {
		t.Parallel()

		l, task := newLedger(t)
		status := domain.TaskStatusReview

		updated, err := l.Apply(ctx, task.ID, domain.Mutation{Status: &status}, task.Version)
		require.NoError(t, err)
		assert.Equal(t, task.Version+1, updated.Version)
		assert.Equal(t, domain.TaskStatusReview, updated.Status)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		t.Parallel()

		l, task := newLedger(t)
		title := "x"

		_, err := l.Apply(ctx, task.ID, domain.Mutation{Title: &title}, task.Version)
		require.NoError(t, err)

		_, err = l.Apply(ctx, task.ID, domain.Mutation{Title: &title}, task.Version)
		require.ErrorIs(t, err, domain.ErrConflict)

		current, err := l.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Version+1, current.Version, "conflict must not change the version")
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		l, _ := newLedger(t)
		title := "x"

		_, err := l.Apply(ctx, uuid.New(), domain.Mutation{Title: &title}, 1)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("invalid mutation writes nothing", func(t *testing.T) {
		t.Parallel()

		l, task := newLedger(t)
		bogus := domain.TaskStatus("blocked")

		_, err := l.Apply(ctx, task.ID, domain.Mutation{Status: &bogus}, task.Version)
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		current, err := l.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Version, current.Version)
	})

	t.Run("done stamps completedAt from ledger clock", func(t *testing.T) {
		t.Parallel()

		at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		l := newMemLedger().WithClock(fixedClock(at))
		task, err := l.Create(ctx, ledger.CreateInput{Title: "ship"})
		require.NoError(t, err)

		done := domain.TaskStatusDone
		updated, err := l.Apply(ctx, task.ID, domain.Mutation{Status: &done}, task.Version)
		require.NoError(t, err)
		require.NotNil(t, updated.CompletedAt)
		assert.Equal(t, at, *updated.CompletedAt)
	})
}

// For every version number, exactly one of many concurrent writers holding
// that expected version wins; the rest see ErrConflict.
func TestLedger_Apply_ConcurrentCAS(t *testing.T) {
	t.Parallel()

	const (
		rounds  = 20
		writers = 16
	)

	ctx := context.Background()
	l, task := newLedger(t)

	for round := 0; round < rounds; round++ {
		expected := task.Version + int64(round)

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			conflicts atomic.Int32
			start     = make(chan struct{})
		)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				title := uuid.NewString()
				_, err := l.Apply(ctx, task.ID, domain.Mutation{Title: &title}, expected)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, domain.ErrConflict):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), successes.Load(), "round %d", round)
		require.Equal(t, int32(writers-1), conflicts.Load(), "round %d", round)
	}

	final, err := l.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Version+rounds, final.Version)
}

func TestLedger_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, task := newLedger(t)

	deleted, err := l.Delete(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "board-1", deleted.Board)

	_, err = l.Get(ctx, task.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
