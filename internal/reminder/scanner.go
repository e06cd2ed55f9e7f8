// Package reminder notifies assignees about tasks that are due soon. Each
// (task, due date) pair is announced once, even across instances when the
// claim store is shared.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	redisstore "github.com/gosuda/taskboard/internal/store/redis"
)

// DefaultWindow is how far ahead of a due date reminders go out.
const DefaultWindow = 24 * time.Hour

type TaskSource interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error)
}

// Claimer records that a reminder went out. *redisstore.PubSub satisfies it;
// MemoryClaims is the single-instance fallback.
type Claimer interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

type Scanner struct {
	tasks    TaskSource
	claims   Claimer
	notifier Notifier
	window   time.Duration
	now      func() time.Time
}

func New(tasks TaskSource, claims Claimer, notifier Notifier, window time.Duration) *Scanner {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scanner{tasks: tasks, claims: claims, notifier: notifier, window: window, now: time.Now}
}

// WithClock replaces the scanner's clock.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Scan notifies the assignee of every active task due within the window and
// returns how many reminders were sent. A failed notification releases
// nothing; the claim stands and the task is not retried for that due date.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.tasks.ListDueBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("reminder.Scan: %w", err)
	}

	sent := 0
	for _, t := range due {
		if t.AssigneeID == nil || t.DueDate == nil {
			continue
		}

		claimed, err := s.claims.ClaimOnce(ctx, redisstore.ReminderKey(t.ID.String(), *t.DueDate), 2*s.window)
		if err != nil {
			return sent, fmt.Errorf("reminder.Scan: %w", err)
		}
		if !claimed {
			continue
		}

		if err := s.notifier.Notify(ctx, *t.AssigneeID, Message(t, now)); err != nil {
			log.Error().Err(err).Str("task_id", t.ID.String()).Msg("reminder: notify failed")
			continue
		}
		sent++
	}

	return sent, nil
}

// Run scans every interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Scan(ctx)
			if err != nil {
				log.Error().Err(err).Msg("reminder: scan failed")
				continue
			}
			if n > 0 {
				log.Info().Int("sent", n).Msg("reminder: scan")
			}
		}
	}
}

// Message renders the reminder text for t.
func Message(t *domain.Task, now time.Time) string {
	left := t.DueDate.Sub(now).Round(time.Minute)
	return fmt.Sprintf("Reminder: *%s* on board `%s` is due in %s (%s).",
		t.Title, t.Board, left, t.DueDate.UTC().Format(time.RFC1123))
}

// MemoryClaims is an in-process Claimer.
type MemoryClaims struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{expires: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryClaims) ClaimOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, exp := range c.expires {
		if !now.Before(exp) {
			delete(c.expires, k)
		}
	}
	if _, ok := c.expires[key]; ok {
		return false, nil
	}
	c.expires[key] = now.Add(ttl)
	return true, nil
}
