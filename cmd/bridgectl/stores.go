package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-bridge/internal/config"
	"solana-bridge/internal/storage"
	"solana-bridge/internal/storage/clickhouse"
	"solana-bridge/internal/storage/memory"
	"solana-bridge/internal/storage/migrations"
	pgstore "solana-bridge/internal/storage/postgres"
	redisstore "solana-bridge/internal/storage/redis"
)

// stores is the relayer's persistence as selected by configuration.
type stores struct {
	Requests storage.RequestStore
	Assets   storage.WrappedAssetStore
	Archive  storage.EventArchive
	Seen     storage.SeenCache
	Progress storage.ProgressStore

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores starts from in-memory stores and replaces them with postgres,
// clickhouse and redis as each is configured. Postgres is required unless
// storage.use_memory is set.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	sc := cfg.Storage
	if !sc.UseMemory && sc.PostgresDSN == "" {
		return nil, errors.New("storage.postgres_dsn is required (set storage.use_memory for in-memory storage)")
	}

	s := &stores{
		Requests: memory.NewRequestStore(),
		Assets:   memory.NewWrappedAssetStore(),
		Archive:  memory.NewEventArchive(),
		Seen:     memory.NewSeenCache(cfg.Relayer.DedupTTL),
		Progress: memory.NewProgressStore(),
	}
	if sc.UseMemory {
		logger.Info("using in-memory storage")
		return s, nil
	}

	pool, err := pgstore.NewPool(ctx, sc.PostgresDSN, 10)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres ready", zap.Strings("applied", applied))
	s.Requests = pgstore.NewRequestStore(pool)
	s.Assets = pgstore.NewWrappedAssetStore(pool)
	s.Progress = pgstore.NewProgressStore(pool)

	if sc.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, sc.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Archive = clickhouse.NewEventArchive(conn)
		logger.Info("clickhouse event archive ready")
	}

	if sc.RedisAddr != "" {
		rp, err := redisstore.NewPool(ctx, sc.RedisAddr, sc.RedisPrefix)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rp.Close() })
		s.Seen = redisstore.NewSeenCache(rp, cfg.Relayer.DedupTTL)
		s.Progress = redisstore.NewProgressStore(rp)
		logger.Info("redis dedup cache ready", zap.String("addr", sc.RedisAddr))
	}

	return s, nil
}
