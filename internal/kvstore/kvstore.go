package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/theta-pulse/internal/config"
	"github.com/rickgao/theta-pulse/internal/database"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kvstore: key not found")

// Store reads and writes small blobs under string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pinger is implemented by backends that talk to a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open creates the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil

	case config.DriverBadger:
		return OpenBadger(cfg.Badger.Dir, logger)

	case config.DriverRedis:
		r := NewRedis(cfg.Redis)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return r, nil

	case config.DriverPostgres:
		logger.Info("connecting to postgres", "dsn", database.Redacted(cfg.Postgres))
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg, err := NewPostgres(ctx, pool, cfg.Postgres.Table)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
