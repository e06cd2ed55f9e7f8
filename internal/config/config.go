package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Server    ServerConfig
	Hub       HubConfig
	Balancer  BalancerConfig
	Reminder  ReminderConfig
	Slack     SlackConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr runs the
// process standalone: no cross-instance relay, in-memory reminder claims.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	InstanceID   string
}

// HubConfig tunes board WebSocket sessions.
type HubConfig struct {
	SendBuffer   int
	PingInterval time.Duration
	RelayBuffer  int
}

// BalancerConfig controls periodic balancing; zero keeps it on-demand.
type BalancerConfig struct {
	Interval time.Duration
}

type ReminderConfig struct {
	Interval time.Duration
	Window   time.Duration
}

// SlackConfig holds Slack integration settings. Both values are needed to
// enable the integration.
type SlackConfig struct {
	BotToken      string
	SigningSecret string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type LogConfig struct {
	Level  string
	Format string
}

// Enabled reports whether Slack commands and notifications are configured.
func (c SlackConfig) Enabled() bool {
	return c.BotToken != "" && c.SigningSecret != ""
}

// envReader keeps the first parse error so Load can read every key in one pass.
type envReader struct {
	err error
}

func (r *envReader) int(key string, fallback int) int {
	v, err := getEnvInt(key, fallback)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func (r *envReader) float(key string, fallback float64) float64 {
	v, err := getEnvFloat(key, fallback)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, err := getEnvDuration(key, fallback)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	var env envReader

	cfg := &Config{
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("TASKBOARD_STORE", BackendMemory)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("TASKBOARD_DB_HOST", "localhost"),
			Port:     env.int("TASKBOARD_DB_PORT", 5432),
			User:     getEnv("TASKBOARD_DB_USER", "taskboard"),
			Password: getEnv("TASKBOARD_DB_PASSWORD", ""),
			DBName:   getEnv("TASKBOARD_DB_NAME", "taskboard_dev"),
			SSLMode:  getEnv("TASKBOARD_DB_SSLMODE", "disable"),
			MaxConns: env.int("TASKBOARD_DB_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("TASKBOARD_REDIS_ADDR", ""),
			Password: getEnv("TASKBOARD_REDIS_PASSWORD", ""),
			DB:       env.int("TASKBOARD_REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:    getEnv("TASKBOARD_JWT_SECRET", ""),
			AccessTTL: env.duration("TASKBOARD_JWT_ACCESS_TTL", 24*time.Hour),
		},
		Server: ServerConfig{
			Addr:         getEnv("TASKBOARD_SERVER_ADDR", ":8080"),
			ReadTimeout:  env.duration("TASKBOARD_SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: env.duration("TASKBOARD_SERVER_WRITE_TIMEOUT", 30*time.Second),
			CORSOrigins:  getEnvList("TASKBOARD_CORS_ORIGINS", []string{"http://localhost:5173"}),
			InstanceID:   getEnv("TASKBOARD_INSTANCE_ID", ""),
		},
		Hub: HubConfig{
			SendBuffer:   env.int("TASKBOARD_HUB_SEND_BUFFER", 64),
			PingInterval: env.duration("TASKBOARD_HUB_PING_INTERVAL", 54*time.Second),
			RelayBuffer:  env.int("TASKBOARD_HUB_RELAY_BUFFER", 256),
		},
		Balancer: BalancerConfig{
			Interval: env.duration("TASKBOARD_BALANCER_INTERVAL", 0),
		},
		Reminder: ReminderConfig{
			Interval: env.duration("TASKBOARD_REMINDER_INTERVAL", time.Hour),
			Window:   env.duration("TASKBOARD_REMINDER_WINDOW", 24*time.Hour),
		},
		Slack: SlackConfig{
			BotToken:      getEnv("TASKBOARD_SLACK_BOT_TOKEN", ""),
			SigningSecret: getEnv("TASKBOARD_SLACK_SIGNING_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   env.float("TASKBOARD_RATE_LIMIT_RPS", 100),
			Burst: env.int("TASKBOARD_RATE_LIMIT_BURST", 200),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("TASKBOARD_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("TASKBOARD_LOG_FORMAT", "json")),
		},
	}
	if env.err != nil {
		return nil, fmt.Errorf("config.Load: %w", env.err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("TASKBOARD_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("TASKBOARD_JWT_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("TASKBOARD_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("TASKBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("TASKBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("TASKBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	default:
		return fmt.Errorf("TASKBOARD_STORE must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Store.Backend)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Hub.SendBuffer < 1 {
		return fmt.Errorf("TASKBOARD_HUB_SEND_BUFFER must be >= 1, got %d", c.Hub.SendBuffer)
	}
	if c.Hub.RelayBuffer < 1 {
		return fmt.Errorf("TASKBOARD_HUB_RELAY_BUFFER must be >= 1, got %d", c.Hub.RelayBuffer)
	}
	if c.Balancer.Interval < 0 {
		return fmt.Errorf("TASKBOARD_BALANCER_INTERVAL must not be negative, got %s", c.Balancer.Interval)
	}
	if c.Reminder.Window <= 0 {
		return fmt.Errorf("TASKBOARD_REMINDER_WINDOW must be positive, got %s", c.Reminder.Window)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("TASKBOARD_RATE_LIMIT_RPS must be positive, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("TASKBOARD_RATE_LIMIT_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
