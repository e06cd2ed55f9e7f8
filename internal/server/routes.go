package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/api/ws"
	tbslack "github.com/gosuda/taskboard/internal/messenger/slack"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterTaskRoutes(api, deps.Ledger, deps.Hub)
	v1.RegisterBulkRoutes(api, deps.Ledger, deps.Hub)
	v1.RegisterSearchRoutes(api, deps.Ledger)
	v1.RegisterTimeRoutes(api, deps.Ledger, deps.Time, deps.Hub)
	v1.RegisterAssignRoutes(api, deps.Balancer)
	v1.RegisterUserRoutes(api, deps.Users)
	v1.RegisterAnalyticsRoutes(api, deps.Analytics)
}

func registerWSRoutes(r chi.Router, handler *ws.Handler) {
	r.Get("/board/{boardID}", handler.ServeBoard)
}

func registerSlackRoutes(r chi.Router, handler *tbslack.Handler) {
	r.Post("/events", handler.HandleEvents)
}
