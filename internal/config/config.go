// Package config loads the runtime configuration of the newsdesk console
// from NEWSDESK_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Prefix is prepended to every variable name.
const Prefix = "NEWSDESK_"

// Durable backend names.
const (
	BackendBBolt    = "bbolt"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds runtime configuration for the console server.
type Config struct {
	Addr             string        `env:"ADDR,default=:8080"`
	DataDir          string        `env:"DATA_DIR,default=./data"`
	DirectoryFile    string        `env:"DIRECTORY_FILE"`
	DurableBackend   string        `env:"DURABLE_BACKEND,default=bbolt"`
	PostgresDSN      string        `env:"POSTGRES_DSN"`
	RedisAddr        string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisDB          int           `env:"REDIS_DB,default=0"`
	SessionLifetime  time.Duration `env:"SESSION_LIFETIME,default=24h"`
	ActivityInterval time.Duration `env:"ACTIVITY_INTERVAL,default=5m"`
	TLSCert          string        `env:"TLS_CERT"`
	TLSKey           string        `env:"TLS_KEY"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`
	LogFormat        string        `env:"LOG_FORMAT,default=json"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith is Load reading from l instead of the process environment.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(Prefix, l),
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend-specific requirements and value ranges.
func (c Config) Validate() error {
	var errs []error
	switch c.DurableBackend {
	case BackendBBolt:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data dir is required for the bbolt backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown durable backend %q", c.DurableBackend))
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, fmt.Errorf("session lifetime must be positive, got %s", c.SessionLifetime))
	}
	if c.ActivityInterval <= 0 {
		errs = append(errs, fmt.Errorf("activity interval must be positive, got %s", c.ActivityInterval))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
