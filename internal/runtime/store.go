package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/szaher/voicebridge/internal/config"
	"github.com/szaher/voicebridge/internal/session"
)

// openRegistry connects the configured session backend. The returned close
// function releases its connections.
func openRegistry(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger) (session.Registry, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory, "":
		return session.NewMemoryStore(cfg.TTL), noop, nil

	case config.BackendRedis:
		client := session.NewGoRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		opts := []session.RedisStoreOption{session.WithTTL(cfg.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, session.WithPrefix(cfg.Redis.Prefix))
		}
		logger.Info("session registry connected", "backend", cfg.Backend, "addr", cfg.Redis.Addr)
		return session.NewRedisStore(client, opts...), client.Close, nil

	case config.BackendEtcd:
		cli, err := session.DialEtcd(cfg.Etcd.Endpoints, cfg.Etcd.DialTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("session registry connected", "backend", cfg.Backend, "endpoints", cfg.Etcd.Endpoints)
		return session.NewEtcdStore(cli, cfg.Etcd.Prefix, cfg.TTL), cli.Close, nil

	case config.BackendPostgres:
		pool, err := session.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := session.NewPostgresStore(pool, cfg.Postgres.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("session registry connected", "backend", cfg.Backend)
		return store, func() error { pool.Close(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
