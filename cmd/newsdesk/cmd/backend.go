package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/newsdesk/directory"
	"github.com/jmcleod/newsdesk/internal/config"
	"github.com/jmcleod/newsdesk/session"
	"github.com/jmcleod/newsdesk/storage"
	bboltstorage "github.com/jmcleod/newsdesk/storage/bbolt"
	"github.com/jmcleod/newsdesk/storage/memory"
	pgstorage "github.com/jmcleod/newsdesk/storage/postgres"
	redisstorage "github.com/jmcleod/newsdesk/storage/redis"
)

const sessionFile = "session.db"

// lockTimeout bounds the wait for the bbolt file lock held by another process.
const lockTimeout = time.Second

// openDurable opens the repository backing remember-me sessions. The
// returned func releases it.
func openDurable(ctx context.Context, c config.Config) (storage.Repository, func(), error) {
	switch c.DurableBackend {
	case config.BackendBBolt:
		if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path := filepath.Join(c.DataDir, sessionFile)
		repo, err := bboltstorage.NewRepositoryFromFile(path, &bbolt.Options{Timeout: lockTimeout})
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, nil, fmt.Errorf("session file %s is in use by a running server: %w", path, err)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
		}
		return repo, func() { closeLogged("bbolt", repo.Close()) }, nil

	case config.BackendPostgres:
		repo, err := pgstorage.NewRepositoryFromDSN(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres session storage: %w", err)
		}
		return repo, repo.Close, nil

	case config.BackendRedis:
		repo, err := redisstorage.NewRepositoryFromOptions(ctx, &goredis.Options{
			Addr: c.RedisAddr,
			DB:   c.RedisDB,
		}, redisstorage.DefaultPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis session storage: %w", err)
		}
		return repo, func() { closeLogged("redis", repo.Close()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown durable backend %q", c.DurableBackend)
}

// newSessionStore pairs the durable repository with a fresh in-memory one:
// the ephemeral backend lives exactly as long as this process.
func newSessionStore(c config.Config, durable storage.Repository, log *slog.Logger) *session.Store {
	return session.NewStore(
		session.NewBackend(session.Durable, durable),
		session.NewBackend(session.Ephemeral, memory.NewRepository()),
		session.WithLifetime(c.SessionLifetime),
		session.WithLogger(log),
	)
}

func loadDirectory(c config.Config) (*directory.Directory, error) {
	if c.DirectoryFile == "" {
		return directory.Default(), nil
	}
	return directory.LoadFile(c.DirectoryFile)
}

func closeLogged(what string, err error) {
	if err != nil {
		slog.Warn("closing storage", slog.String("backend", what), slog.Any("error", err))
	}
}
