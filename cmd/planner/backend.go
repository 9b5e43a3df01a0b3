package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecgard/planner/internal/board"
	"github.com/alecgard/planner/internal/config"
	"github.com/alecgard/planner/internal/metrics"
	"github.com/alecgard/planner/internal/storage"
	"github.com/alecgard/planner/internal/team"
	"github.com/alecgard/planner/internal/user"
)

// app is the set of stores shared by every command.
type app struct {
	cfg     *config.Config
	backend storage.Backend
	users   *user.Store
	teams   *team.Store
	boards  *board.Store
}

// loadConfig reads and validates the configuration, then installs the JSON
// logger at the configured level as the slog default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openBackend connects the storage driver named in cfg. When m is non-nil
// the backend is instrumented and, for postgres, pool stats are exported.
func openBackend(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (storage.Backend, error) {
	var backend storage.Backend
	switch cfg.Storage.Driver {
	case config.DriverFile:
		b, err := storage.NewFileBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		backend = b
	case config.DriverMemory:
		backend = storage.NewMemoryBackend()
	case config.DriverPostgres:
		b, err := storage.NewPostgresBackend(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if m != nil {
			pool := b.Pool()
			m.RegisterDBPoolCollector(func() metrics.PoolStats {
				s := pool.Stat()
				return metrics.PoolStats{
					Total:    s.TotalConns(),
					Idle:     s.IdleConns(),
					Acquired: s.AcquiredConns(),
					Max:      s.MaxConns(),
				}
			})
		}
		backend = b
	case config.DriverRedis:
		b, err := storage.NewRedisBackend(ctx, storage.RedisOptions{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	slog.Info("storage opened", "driver", cfg.Storage.Driver)
	if m != nil {
		backend = storage.Instrument(backend, cfg.Storage.Driver, m)
	}
	return backend, nil
}

// newApp opens the backend and wires the user, team and board stores.
func newApp(ctx context.Context, m *metrics.Metrics) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	users := user.NewStore(backend, logger)
	teams := team.NewStore(backend, users, logger)
	boards := board.NewStore(backend, teams, users, board.Options{
		RequireBoardID: cfg.Planner.RequireBoardID,
		ExportDir:      cfg.Export.Dir,
	}, logger)

	return &app{cfg: cfg, backend: backend, users: users, teams: teams, boards: boards}, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}
