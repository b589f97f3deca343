package main

import (
	"context"
	"errors"
	"log/slog"

	"todolist/internal/adapter/memory"
	"todolist/internal/adapter/postgres"
	"todolist/internal/adapter/redisstore"
	"todolist/internal/config"
	"todolist/internal/domain"

	"github.com/samber/oops"
)

// stores bundles the repositories selected by configuration.
type stores struct {
	users    domain.UserRepository
	tasks    domain.TaskRepository
	sessions domain.SessionRepository
	checks   []func(context.Context) error
	closers  []func() error
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Storage {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
		st.users, st.tasks = db, db
		st.checks = append(st.checks, db.Ping)
		st.closers = append(st.closers, db.Close)
		if cfg.SessionBackend == config.BackendPostgres {
			st.sessions = postgres.NewSessionRepo(db)
		}
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		db := memory.New()
		st.users, st.tasks = db, db
		st.checks = append(st.checks, db.Ping)
		if cfg.SessionBackend == config.BackendMemory {
			st.sessions = db.NewSessionRepo()
		}
	}

	switch cfg.SessionBackend {
	case config.BackendRedis:
		client, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			_ = st.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
		}
		st.sessions = redisstore.NewSessionRepo(client, "")
		st.checks = append(st.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		st.closers = append(st.closers, client.Close)
	case config.BackendMemory:
		if st.sessions == nil {
			st.sessions = memory.New().NewSessionRepo()
		}
	}

	return st, nil
}

// Ping checks every backing store.
func (s *stores) Ping(ctx context.Context) error {
	var errs []error
	for _, check := range s.checks {
		errs = append(errs, check(ctx))
	}
	return errors.Join(errs...)
}

// Close releases store connections.
func (s *stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
