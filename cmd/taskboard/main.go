package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/taskboard/internal/analytics"
	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
	"github.com/gosuda/taskboard/internal/ledger"
	tbslack "github.com/gosuda/taskboard/internal/messenger/slack"
	"github.com/gosuda/taskboard/internal/notify"
	"github.com/gosuda/taskboard/internal/reminder"
	"github.com/gosuda/taskboard/internal/server"
	"github.com/gosuda/taskboard/internal/server/middleware"
	"github.com/gosuda/taskboard/internal/store/memory"
	"github.com/gosuda/taskboard/internal/store/postgres"
	redisstore "github.com/gosuda/taskboard/internal/store/redis"
	"github.com/gosuda/taskboard/internal/timetrack"
)

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = issueToken(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("taskboard failed")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, parseErr := zerolog.ParseLevel(cfg.Level)
	if parseErr != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// issueToken prints a signed access token, for local development and for
// bootstrapping the first admin.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user ID (random when empty)")
	role := fs.String("role", middleware.RoleMember, "role claim (admin or member)")
	ttl := fs.Duration("ttl", 0, "token lifetime (default TASKBOARD_JWT_ACCESS_TTL)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	userID := uuid.New()
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			return fmt.Errorf("token: user: %w", err)
		}
	}
	if *ttl <= 0 {
		*ttl = cfg.JWT.AccessTTL
	}

	tok, err := auth.IssueAccessToken(cfg.JWT.Secret, userID, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "user %s, role %s, expires in %s\n", userID, *role, *ttl)
	fmt.Println(tok)
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		tasks domain.TaskStore
		users domain.UserStore
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		tasks, users = store.Tasks(), store.Users()
	default:
		store := memory.New()
		tasks, users = store, store
		log.Warn().Msg("using the in-memory store; data is lost on restart")
	}

	boardHub := hub.New()
	l := ledger.New(tasks, users)
	aggregator := timetrack.New(l)
	reports := analytics.New(l, users)

	balancer := balance.New(tasks, users, l)
	balancer.OnAssigned(func(t *domain.Task) {
		if _, err := boardHub.Publish("", t.Board, domain.TaskEvent(domain.EventTaskUpdated, t)); err != nil {
			log.Warn().Err(err).Str("task_id", t.ID.String()).Msg("balance: broadcast rejected")
		}
	})

	// Redis is optional: it links instances and shares reminder claims.
	var claims reminder.Claimer = reminder.NewMemoryClaims()
	if cfg.Redis.Addr != "" {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()
		claims = pubsub

		instance := cfg.Server.InstanceID
		if instance == "" {
			instance = uuid.NewString()
		}
		relay := hub.NewRelay(boardHub, pubsub, instance, cfg.Hub.RelayBuffer)
		boardHub.SetForwarder(relay)
		go func() {
			if runErr := relay.Run(ctx); runErr != nil {
				log.Error().Err(runErr).Msg("relay stopped")
			}
		}()
		log.Info().Str("instance", instance).Msg("cross-instance relay enabled")
	}

	registry := notify.NewRegistry()
	deps := server.Deps{
		Ledger:    l,
		Hub:       boardHub,
		Time:      aggregator,
		Balancer:  balancer,
		Analytics: reports,
		Users:     users,
	}
	if cfg.Slack.BotToken != "" {
		slackMessenger := tbslack.NewSlackMessenger(slacklib.New(cfg.Slack.BotToken))
		registry.Add(slackMessenger)
		deps.SlackReplies = slackMessenger
	}
	log.Info().Strs("platforms", registry.Platforms()).Msg("reminder delivery")

	scanner := reminder.New(tasks, claims, notify.New(registry, users), cfg.Reminder.Window)
	go scanner.Run(ctx, cfg.Reminder.Interval)
	go balancer.RunPeriodically(ctx, cfg.Balancer.Interval)

	srv := server.New(ctx, cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Backend).Msg("starting server")
		errCh <- srv.Start(ctx)
	}()

	// Block until shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case startErr := <-errCh:
		if startErr != nil {
			return startErr
		}
		return errors.New("server stopped unexpectedly")
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
