package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/analytics"
	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
	"github.com/gosuda/taskboard/internal/ledger"
	tbslack "github.com/gosuda/taskboard/internal/messenger/slack"
	"github.com/gosuda/taskboard/internal/server/middleware"
	"github.com/gosuda/taskboard/internal/timetrack"
)

// Deps are the components the HTTP surface is wired to.
type Deps struct {
	Ledger    *ledger.Ledger
	Hub       *hub.Hub
	Time      *timetrack.Aggregator
	Balancer  *balance.Balancer
	Analytics *analytics.Analyzer
	Users     domain.UserStore

	// SlackReplies answers Slack commands; the Slack routes are mounted only
	// when it is set and Slack is configured.
	SlackReplies tbslack.Replier
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all routes wired. ctx bounds the rate limiter
// cleanup goroutines.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", v1.ConnectionHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleMember))
		r.Use(middleware.RateLimit(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst))

		apiConfig := huma.DefaultConfig("Taskboard API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, deps)
	})

	// WebSocket routes. Browsers cannot set headers on the upgrade request,
	// so Auth also accepts the token as a query parameter.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleMember))
		registerWSRoutes(r, ws.NewHandler(deps.Hub, cfg.Hub.SendBuffer, cfg.Hub.PingInterval, originHosts(cfg.Server.CORSOrigins)))
	})

	if cfg.Slack.Enabled() && deps.SlackReplies != nil {
		commands := &slackCommands{ledger: deps.Ledger, hub: deps.Hub, balancer: deps.Balancer, users: deps.Users}
		handler := tbslack.NewHandler(cfg.Slack.SigningSecret, commands, deps.SlackReplies)
		router.Route("/slack", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst))
			registerSlackRoutes(r, handler)
		})
		log.Info().Msg("Slack integration enabled")
	}

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// originHosts turns CORS origins into the host patterns the WebSocket
// accept check matches against. "*" passes through.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			log.Warn().Str("origin", o).Msg("server: ignoring unparsable CORS origin for websocket")
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
