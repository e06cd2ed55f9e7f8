package v1

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/analytics"
	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
	"github.com/gosuda/taskboard/internal/ledger"
)

// TaskLedger is the versioned task write path.
// *ledger.Ledger satisfies this interface.
type TaskLedger interface {
	Create(ctx context.Context, in ledger.CreateInput) (*domain.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByBoard(ctx context.Context, board string) ([]*domain.Task, error)
	Apply(ctx context.Context, id uuid.UUID, m domain.Mutation, expectedVersion int64) (*domain.Task, error)
	Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Now() time.Time
}

// Broadcaster fans events out to a board room. *hub.Hub satisfies this interface.
type Broadcaster interface {
	Publish(origin hub.ConnID, roomID string, ev domain.Event) (int, error)
}

// TimeRecorder appends work sessions. *timetrack.Aggregator satisfies this interface.
type TimeRecorder interface {
	Record(ctx context.Context, taskID, userID uuid.UUID, d time.Duration, expectedVersion int64) (*domain.Task, error)
}

// WorkloadBalancer assigns unowned work and reports per-user load.
// *balance.Balancer satisfies this interface.
type WorkloadBalancer interface {
	Balance(ctx context.Context) (*balance.Result, error)
	Workload(ctx context.Context) ([]balance.UserWorkload, error)
}

// TaskSearcher filters tasks across boards. *ledger.Ledger satisfies this interface.
type TaskSearcher interface {
	Search(ctx context.Context, f domain.TaskFilter) ([]*domain.Task, error)
}

// Reporter computes board statistics. *analytics.Analyzer satisfies this interface.
type Reporter interface {
	Overview(ctx context.Context, r analytics.Range) (*analytics.Report, error)
	ForUser(ctx context.Context, userID uuid.UUID, r analytics.Range) (*analytics.UserReport, error)
}
