package v1_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"

	"github.com/gosuda/taskboard/internal/analytics"
	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
	"github.com/gosuda/taskboard/internal/ledger"
	"github.com/gosuda/taskboard/internal/server/middleware"
	"github.com/gosuda/taskboard/internal/store/memory"
	"github.com/gosuda/taskboard/internal/timetrack"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUser(context.Background(), userID, middleware.RoleMember)
}

func adminCtx(userID uuid.UUID) context.Context {
	return middleware.WithUser(context.Background(), userID, middleware.RoleAdmin)
}

// ---------------------------------------------------------------------------
// Recording broadcaster
// ---------------------------------------------------------------------------

type published struct {
	origin hub.ConnID
	room   string
	event  domain.Event
}

type recordingHub struct {
	mu     sync.Mutex
	events []published
}

func (h *recordingHub) Publish(origin hub.ConnID, roomID string, ev domain.Event) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, published{origin: origin, room: roomID, event: ev})
	return 1, nil
}

func (h *recordingHub) all() []published {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]published(nil), h.events...)
}

// ---------------------------------------------------------------------------
// Mock WorkloadBalancer
// ---------------------------------------------------------------------------

type mockBalancer struct {
	balanceFunc  func(ctx context.Context) (*balance.Result, error)
	workloadFunc func(ctx context.Context) ([]balance.UserWorkload, error)
}

func (m *mockBalancer) Balance(ctx context.Context) (*balance.Result, error) {
	return m.balanceFunc(ctx)
}

func (m *mockBalancer) Workload(ctx context.Context) ([]balance.UserWorkload, error) {
	return m.workloadFunc(ctx)
}

// ---------------------------------------------------------------------------
// Fixture: real ledger over the memory store
// ---------------------------------------------------------------------------

type taskAPI struct {
	api    humatest.TestAPI
	store  *memory.Store
	ledger *ledger.Ledger
	hub    *recordingHub
	now    time.Time
}

func newTaskAPI(t *testing.T) *taskAPI {
	t.Helper()

	now := time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)
	store := memory.New()
	l := ledger.New(store, store).WithClock(func() time.Time { return now })
	rec := &recordingHub{}

	_, api := humatest.New(t)
	v1.RegisterTaskRoutes(api, l, rec)
	v1.RegisterBulkRoutes(api, l, rec)
	v1.RegisterSearchRoutes(api, l)
	v1.RegisterTimeRoutes(api, l, timetrack.New(l), rec)
	v1.RegisterUserRoutes(api, store)
	v1.RegisterAnalyticsRoutes(api, analytics.New(l, store).WithClock(func() time.Time { return now }))

	return &taskAPI{api: api, store: store, ledger: l, hub: rec, now: now}
}

func (f *taskAPI) seed(t *testing.T, board, title string) *domain.Task {
	t.Helper()

	task, err := f.ledger.Create(context.Background(), ledger.CreateInput{Board: board, Title: title})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}
