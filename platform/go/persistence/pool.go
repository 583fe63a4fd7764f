package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig holds the DATABASE_* settings shared by the API and the CLI.
type PoolConfig struct {
	ConnString string
	// MaxConns caps the pool; zero keeps the pgx default.
	MaxConns int32
	// ApplicationName shows up in pg_stat_activity so API and CLI sessions can
	// be told apart.
	ApplicationName string
}

// NewPool opens the pool and pings it once. Sessions run in UTC so
// scheduled_at comparisons do not depend on the server's zone.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.ConnString == "" {
		return nil, errors.New("database url is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	params := poolConfig.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Ping backs the /readyz check.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("pool is not configured")
	}
	return pool.Ping(ctx)
}

// ClosePool is nil-safe.
func ClosePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
