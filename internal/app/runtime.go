// Package app opens the stores and lock backend selected by config and
// assembles the scheduling core shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/api"
	"github.com/hackgods/practitioner-scheduling/internal/appointment"
	"github.com/hackgods/practitioner-scheduling/internal/availability"
	"github.com/hackgods/practitioner-scheduling/internal/config"
	"github.com/hackgods/practitioner-scheduling/internal/db"
	"github.com/hackgods/practitioner-scheduling/internal/directory"
	"github.com/hackgods/practitioner-scheduling/internal/lock"
	"github.com/hackgods/practitioner-scheduling/internal/memstore"
	"github.com/hackgods/practitioner-scheduling/internal/notes"
	redisclient "github.com/hackgods/practitioner-scheduling/internal/redis"
	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
)

type Runtime struct {
	Core *scheduling.Core
	// Pool is nil when running on the in-memory store.
	Pool *pgxpool.Pool
	// Directory is nil when running on the in-memory store.
	Directory *directory.PgDirectory
	Checks    map[string]api.Pinger

	redis  *redis.Client
	logger *zap.Logger
}

// Open connects to the backends named by cfg. Callers must Close the result.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{
		Checks: map[string]api.Pinger{},
		logger: logger,
	}

	stores, err := rt.openStores(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	locker, err := rt.openLocker(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts := scheduling.Options{
		Locker:   locker,
		Location: cfg.Location,
		Logger:   logger,
	}
	if rt.Directory != nil {
		opts.Directory = rt.Directory
	}
	rt.Core = scheduling.New(stores, opts)
	return rt, nil
}

func (rt *Runtime) openStores(ctx context.Context, cfg config.Config) (scheduling.Stores, error) {
	if cfg.Store == config.StoreMemory {
		rt.logger.Warn("using in-memory store, data is lost on restart")
		mem := memstore.New()
		return scheduling.Stores{
			Blocks:       mem.Blocks,
			Appointments: mem.Appointments,
			Notes:        mem.Notes,
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		return scheduling.Stores{}, fmt.Errorf("postgres connection: %w", err)
	}
	rt.Pool = pool
	rt.Checks["postgres"] = pool
	rt.logger.Info("connected to postgres")

	if cfg.MigrationsOnStart {
		if err := db.Migrate(ctx, pool, rt.logger.Named("migrate")); err != nil {
			return scheduling.Stores{}, err
		}
	}

	rt.Directory = directory.NewPgDirectory(pool)
	return scheduling.Stores{
		Blocks:       availability.NewPgRepository(pool),
		Appointments: appointment.NewPgRepository(pool),
		Notes:        notes.NewPgRepository(pool),
	}, nil
}

func (rt *Runtime) openLocker(ctx context.Context, cfg config.Config) (lock.Locker, error) {
	if cfg.LockBackend == config.LockLocal {
		rt.logger.Info("using in-process calendar lock")
		return lock.NewLocal(), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	rt.redis = rdb
	rt.Checks["redis"] = api.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	rt.logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	return redisclient.NewRedisCalendarLocker(rdb, cfg.LockTTL), nil
}

func (rt *Runtime) Close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("error closing redis", zap.Error(err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
