// Package analytics derives completion, productivity and time statistics
// from the task store. Reports are recomputed on every call.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/domain"
)

// Range is the look-back window for completion figures.
type Range string

const (
	RangeWeek    Range = "week"
	RangeMonth   Range = "month"
	RangeQuarter Range = "quarter"
)

// Days is the window length; unknown ranges count as a week.
func (r Range) Days() int {
	switch r {
	case RangeMonth:
		return 30
	case RangeQuarter:
		return 90
	default:
		return 7
	}
}

// trendDays is the length of the task creation trend.
const trendDays = 30

// Source lists every task. domain.TaskStore satisfies this interface.
type Source interface {
	ListAll(ctx context.Context) ([]*domain.Task, error)
}

type Completion struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed" doc:"Tasks completed inside the range"`
	Todo           int     `json:"todo"`
	InProgress     int     `json:"in_progress"`
	Review         int     `json:"review"`
	CompletionRate float64 `json:"completion_rate" doc:"Percent, one decimal"`
}

type Productivity struct {
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	TotalTasks     int       `json:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	CompletionRate float64   `json:"completion_rate"`
	TotalTimeSpent float64   `json:"total_time_spent" doc:"Seconds tracked on tasks completed inside the range"`
	AvgTimePerTask float64   `json:"avg_time_per_task" doc:"Seconds"`
}

type TimeStats struct {
	TotalTimeSpent float64 `json:"total_time_spent" doc:"Seconds"`
	AvgTimePerTask float64 `json:"avg_time_per_task" doc:"Seconds"`
}

type DayCount struct {
	Date  string `json:"date" doc:"UTC day, YYYY-MM-DD"`
	Count int    `json:"count"`
}

type Report struct {
	Range       Range          `json:"range"`
	Since       time.Time      `json:"since"`
	Completion  Completion     `json:"task_completion"`
	Users       []Productivity `json:"user_productivity"`
	Time        TimeStats      `json:"time_tracking"`
	Labels      map[string]int `json:"label_distribution"`
	Trend       []DayCount     `json:"task_trend"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type UserReport struct {
	UserID         uuid.UUID            `json:"user_id"`
	Name           string               `json:"name"`
	Range          Range                `json:"range"`
	Since          time.Time            `json:"since"`
	TotalTasks     int                  `json:"total_tasks"`
	CompletedTasks int                  `json:"completed_tasks"`
	CompletionRate float64              `json:"completion_rate"`
	TotalTimeSpent float64              `json:"total_time_spent" doc:"Seconds tracked on all of the user's tasks"`
	AvgTimePerTask float64              `json:"avg_time_per_task" doc:"Seconds per task completed inside the range"`
	ByStatus       balance.StatusCounts `json:"tasks_by_status"`
}

type Analyzer struct {
	tasks Source
	users domain.Directory
	now   func() time.Time
}

func New(tasks Source, users domain.Directory) *Analyzer {
	return &Analyzer{tasks: tasks, users: users, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Overview reports board-wide figures and per-user productivity in
// directory order.
func (a *Analyzer) Overview(ctx context.Context, r Range) (*Report, error) {
	tasks, err := a.tasks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics.Overview: list tasks: %w", err)
	}
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics.Overview: list users: %w", err)
	}

	now := a.now().UTC()
	since := now.AddDate(0, 0, -r.Days())
	rep := &Report{
		Range:       r,
		Since:       since,
		Users:       make([]Productivity, len(users)),
		Labels:      make(map[string]int),
		GeneratedAt: now,
	}

	byUser := make(map[uuid.UUID]*Productivity, len(users))
	userTime := make(map[uuid.UUID]time.Duration, len(users))
	for i, u := range users {
		rep.Users[i] = Productivity{UserID: u.ID, Name: u.Name}
		byUser[u.ID] = &rep.Users[i]
	}

	var total time.Duration
	for _, t := range tasks {
		rep.Completion.Total++
		switch t.Status {
		case domain.TaskStatusTodo:
			rep.Completion.Todo++
		case domain.TaskStatusInProgress:
			rep.Completion.InProgress++
		case domain.TaskStatusReview:
			rep.Completion.Review++
		case domain.TaskStatusDone:
		}
		done := completedSince(t, since)
		if done {
			rep.Completion.Completed++
		}
		total += t.TimeTracking.TotalTime
		for _, l := range t.Labels {
			rep.Labels[l.Name]++
		}

		if t.AssigneeID == nil {
			continue
		}
		p, ok := byUser[*t.AssigneeID]
		if !ok {
			continue
		}
		p.TotalTasks++
		if done {
			p.CompletedTasks++
			userTime[p.UserID] += t.TimeTracking.TotalTime
		}
	}

	rep.Completion.CompletionRate = percent(rep.Completion.Completed, rep.Completion.Total)
	for i := range rep.Users {
		p := &rep.Users[i]
		p.CompletionRate = percent(p.CompletedTasks, p.TotalTasks)
		p.TotalTimeSpent = domain.Seconds(userTime[p.UserID])
		p.AvgTimePerTask = average(userTime[p.UserID], p.CompletedTasks)
	}
	rep.Time = TimeStats{TotalTimeSpent: domain.Seconds(total), AvgTimePerTask: average(total, len(tasks))}
	rep.Trend = trend(tasks, now)

	return rep, nil
}

// ForUser reports on the tasks assigned to one directory user.
func (a *Analyzer) ForUser(ctx context.Context, userID uuid.UUID, r Range) (*UserReport, error) {
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics.ForUser: list users: %w", err)
	}
	var user *domain.User
	for _, u := range users {
		if u.ID == userID {
			user = u
			break
		}
	}
	if user == nil {
		return nil, fmt.Errorf("analytics.ForUser: user %s: %w", userID, domain.ErrNotFound)
	}

	tasks, err := a.tasks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics.ForUser: list tasks: %w", err)
	}

	since := a.now().UTC().AddDate(0, 0, -r.Days())
	rep := &UserReport{UserID: user.ID, Name: user.Name, Range: r, Since: since}

	var spent, completedTime time.Duration
	for _, t := range tasks {
		if t.AssigneeID == nil || *t.AssigneeID != userID {
			continue
		}
		rep.TotalTasks++
		spent += t.TimeTracking.TotalTime
		switch t.Status {
		case domain.TaskStatusTodo:
			rep.ByStatus.Todo++
		case domain.TaskStatusInProgress:
			rep.ByStatus.InProgress++
		case domain.TaskStatusReview:
			rep.ByStatus.Review++
		case domain.TaskStatusDone:
			rep.ByStatus.Done++
		}
		if completedSince(t, since) {
			rep.CompletedTasks++
			completedTime += t.TimeTracking.TotalTime
		}
	}

	rep.CompletionRate = percent(rep.CompletedTasks, rep.TotalTasks)
	rep.TotalTimeSpent = domain.Seconds(spent)
	rep.AvgTimePerTask = average(completedTime, rep.CompletedTasks)
	return rep, nil
}

func completedSince(t *domain.Task, since time.Time) bool {
	return t.Status == domain.TaskStatusDone && t.CompletedAt != nil && !t.CompletedAt.Before(since)
}

// percent is n/d as a percentage rounded to one decimal; zero when d is zero.
func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}

// average is total/n in whole seconds; zero when n is zero.
func average(total time.Duration, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(domain.Seconds(total) / float64(n))
}

// trend counts tasks created on each of the last trendDays UTC days, oldest
// first, ending today.
func trend(tasks []*domain.Task, now time.Time) []DayCount {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(trendDays - 1))

	out := make([]DayCount, trendDays)
	for i := range out {
		out[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}
	for _, t := range tasks {
		created := t.CreatedAt.UTC()
		if created.Before(first) || !created.Before(today.AddDate(0, 0, 1)) {
			continue
		}
		day := int(created.Sub(first) / (24 * time.Hour))
		out[day].Count++
	}
	return out
}
