package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/analytics"
	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/store/memory"
)

var now = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

type board struct {
	store *memory.Store
	ada   *domain.User
	bob   *domain.User
}

func newBoard(t *testing.T) *board {
	t.Helper()

	b := &board{
		store: memory.New(),
		ada:   &domain.User{ID: uuid.New(), Name: "ada"},
		bob:   &domain.User{ID: uuid.New(), Name: "bob"},
	}
	b.store.AddUser(b.ada)
	b.store.AddUser(b.bob)

	stranger := uuid.New()
	b.add(t, &b.ada.ID, domain.TaskStatusDone, now.Add(-48*time.Hour), now.Add(-24*time.Hour), 2*time.Hour, "bug")
	b.add(t, &b.ada.ID, domain.TaskStatusDone, now.Add(-40*24*time.Hour), now.Add(-10*24*time.Hour), time.Hour, "bug", "ui")
	b.add(t, &b.ada.ID, domain.TaskStatusInProgress, now, time.Time{}, 30*time.Minute)
	b.add(t, &b.bob.ID, domain.TaskStatusReview, now.Add(-24*time.Hour), time.Time{}, 0)
	b.add(t, nil, domain.TaskStatusTodo, now.Add(-29*24*time.Hour), time.Time{}, 0)
	b.add(t, &stranger, domain.TaskStatusDone, now.Add(-72*time.Hour), now.Add(-2*time.Hour), 30*time.Minute)
	return b
}

func (b *board) add(t *testing.T, assignee *uuid.UUID, status domain.TaskStatus, created, completed time.Time, spent time.Duration, labels ...string) {
	t.Helper()

	task := &domain.Task{
		ID:         uuid.New(),
		Board:      domain.DefaultBoard,
		Title:      "task",
		Status:     status,
		Priority:   domain.PriorityMedium,
		AssigneeID: assignee,
		CreatedAt:  created,
		UpdatedAt:  created,
		Version:    1,
	}
	if !completed.IsZero() {
		task.CompletedAt = &completed
	}
	task.TimeTracking.TotalTime = spent
	for i, l := range labels {
		task.Labels = append(task.Labels, domain.Label{ID: string(rune('a' + i)), Name: l, Color: "#000000"})
	}
	require.NoError(t, b.store.Create(context.Background(), task))
}

func (b *board) analyzer() *analytics.Analyzer {
	return analytics.New(b.store, b.store).WithClock(func() time.Time { return now })
}

func TestRange_Days(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, analytics.RangeWeek.Days())
	assert.Equal(t, 30, analytics.RangeMonth.Days())
	assert.Equal(t, 90, analytics.RangeQuarter.Days())
	assert.Equal(t, 7, analytics.Range("").Days())
}

func TestOverview(t *testing.T) {
	t.Parallel()

	t.Run("week", func(t *testing.T) {
		t.Parallel()

		b := newBoard(t)
		rep, err := b.analyzer().Overview(context.Background(), analytics.RangeWeek)
		require.NoError(t, err)

		assert.Equal(t, now.AddDate(0, 0, -7), rep.Since)
		assert.Equal(t, now, rep.GeneratedAt)
		assert.Equal(t, analytics.Completion{
			Total:          6,
			Completed:      2,
			Todo:           1,
			InProgress:     1,
			Review:         1,
			CompletionRate: 33.3,
		}, rep.Completion)

		require.Len(t, rep.Users, 2)
		assert.Equal(t, analytics.Productivity{
			UserID:         b.ada.ID,
			Name:           "ada",
			TotalTasks:     3,
			CompletedTasks: 1,
			CompletionRate: 33.3,
			TotalTimeSpent: 7200,
			AvgTimePerTask: 7200,
		}, rep.Users[0])
		assert.Equal(t, analytics.Productivity{UserID: b.bob.ID, Name: "bob", TotalTasks: 1}, rep.Users[1])

		assert.Equal(t, analytics.TimeStats{TotalTimeSpent: 14400, AvgTimePerTask: 2400}, rep.Time)
		assert.Equal(t, map[string]int{"bug": 2, "ui": 1}, rep.Labels)
	})

	t.Run("month widens the completion window", func(t *testing.T) {
		t.Parallel()

		rep, err := newBoard(t).analyzer().Overview(context.Background(), analytics.RangeMonth)
		require.NoError(t, err)

		assert.Equal(t, 3, rep.Completion.Completed)
		assert.InDelta(t, 50.0, rep.Completion.CompletionRate, 1e-9)
		assert.Equal(t, 2, rep.Users[0].CompletedTasks)
		assert.InDelta(t, 66.7, rep.Users[0].CompletionRate, 1e-9)
		assert.InDelta(t, 10800.0, rep.Users[0].TotalTimeSpent, 1e-9)
		assert.InDelta(t, 5400.0, rep.Users[0].AvgTimePerTask, 1e-9)
	})

	t.Run("trend covers thirty days ending today", func(t *testing.T) {
		t.Parallel()

		rep, err := newBoard(t).analyzer().Overview(context.Background(), analytics.RangeWeek)
		require.NoError(t, err)

		require.Len(t, rep.Trend, 30)
		assert.Equal(t, "2026-03-12", rep.Trend[0].Date)
		assert.Equal(t, "2026-04-10", rep.Trend[29].Date)

		counts := make(map[string]int)
		sum := 0
		for _, d := range rep.Trend {
			counts[d.Date] = d.Count
			sum += d.Count
		}
		assert.Equal(t, 5, sum, "the task created forty days ago is outside the trend")
		assert.Equal(t, 1, counts["2026-03-12"])
		assert.Equal(t, 1, counts["2026-04-07"])
		assert.Equal(t, 1, counts["2026-04-08"])
		assert.Equal(t, 1, counts["2026-04-09"])
		assert.Equal(t, 1, counts["2026-04-10"])
	})

	t.Run("empty board", func(t *testing.T) {
		t.Parallel()

		st := memory.New()
		rep, err := analytics.New(st, st).WithClock(func() time.Time { return now }).Overview(context.Background(), analytics.RangeWeek)
		require.NoError(t, err)

		assert.Zero(t, rep.Completion)
		assert.Empty(t, rep.Users)
		assert.Zero(t, rep.Time)
		assert.Empty(t, rep.Labels)
		assert.Len(t, rep.Trend, 30)
	})
}

func TestForUser(t *testing.T) {
	t.Parallel()

	t.Run("directory user", func(t *testing.T) {
		t.Parallel()

		b := newBoard(t)
		rep, err := b.analyzer().ForUser(context.Background(), b.ada.ID, analytics.RangeWeek)
		require.NoError(t, err)

		assert.Equal(t, "ada", rep.Name)
		assert.Equal(t, 3, rep.TotalTasks)
		assert.Equal(t, 1, rep.CompletedTasks)
		assert.InDelta(t, 33.3, rep.CompletionRate, 1e-9)
		assert.InDelta(t, 12600.0, rep.TotalTimeSpent, 1e-9, "time counts every task the user holds")
		assert.InDelta(t, 7200.0, rep.AvgTimePerTask, 1e-9, "average is over tasks completed in range")
		assert.Equal(t, balance.StatusCounts{InProgress: 1, Done: 2}, rep.ByStatus)
	})

	t.Run("user with no tasks", func(t *testing.T) {
		t.Parallel()

		st := memory.New()
		u := &domain.User{ID: uuid.New(), Name: "idle"}
		st.AddUser(u)

		rep, err := analytics.New(st, st).ForUser(context.Background(), u.ID, analytics.RangeQuarter)
		require.NoError(t, err)
		assert.Zero(t, rep.TotalTasks)
		assert.Zero(t, rep.CompletionRate)
		assert.Zero(t, rep.AvgTimePerTask)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		_, err := newBoard(t).analyzer().ForUser(context.Background(), uuid.New(), analytics.RangeWeek)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
