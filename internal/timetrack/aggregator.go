// Package timetrack records work sessions against tasks and keeps each
// task's running total equal to the sum of its session durations.
package timetrack

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// SessionWriter appends a session under the ledger's version check.
// *ledger.Ledger satisfies this interface.
type SessionWriter interface {
	AppendSession(ctx context.Context, id uuid.UUID, s domain.TimeSession, expectedVersion int64) (*domain.Task, error)
	Now() time.Time
}

type Aggregator struct {
	ledger SessionWriter
}

func New(l SessionWriter) *Aggregator {
	return &Aggregator{ledger: l}
}

// Record appends a session of length d ending now. d must be positive and at
// most domain.MaxSessionDuration; an invalid duration fails before anything
// is written. The store rejects a session that would overflow the total.
// The returned task carries the new total.
func (a *Aggregator) Record(ctx context.Context, taskID, userID uuid.UUID, d time.Duration, expectedVersion int64) (*domain.Task, error) {
	if d <= 0 || d > domain.MaxSessionDuration {
		return nil, fmt.Errorf("timetrack.Record: %s: %w", d, domain.ErrInvalidDuration)
	}

	end := a.ledger.Now()
	s := domain.TimeSession{
		Start:    end.Add(-d),
		End:      end,
		Duration: d,
		UserID:   userID,
	}

	t, err := a.ledger.AppendSession(ctx, taskID, s, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("timetrack.Record: %w", err)
	}

	log.Debug().
		Str("task_id", taskID.String()).
		Str("user_id", userID.String()).
		Dur("duration", d).
		Dur("total", t.TimeTracking.TotalTime).
		Msg("timetrack: session recorded")
	return t, nil
}

// Summary is the time tracked on one task.
type Summary struct {
	TaskID    uuid.UUID
	Sessions  []domain.TimeSession
	TotalTime time.Duration
	ByUser    map[uuid.UUID]time.Duration
}

// Summarize groups a task's sessions by user. The result is computed from
// the sessions themselves, not from the stored total.
func Summarize(t *domain.Task) Summary {
	s := Summary{
		TaskID:   t.ID,
		Sessions: append([]domain.TimeSession(nil), t.TimeTracking.Sessions...),
		ByUser:   make(map[uuid.UUID]time.Duration),
	}
	for _, sess := range t.TimeTracking.Sessions {
		s.TotalTime += sess.Duration
		s.ByUser[sess.UserID] += sess.Duration
	}
	return s
}
