package store

import (
	"context"
	"fmt"
	"time"

	"github.com/clothai/clothai/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// connectTimeout bounds the initial dial and ping. A misconfigured URL
// should fail startup quickly rather than hang it.
const connectTimeout = 10 * time.Second

// Connect opens the pgx pool backing the device try-count store and
// verifies it with a ping before handing it out. Pool sizing comes from
// DatabaseConfig; the try-count workload is small, so the defaults there
// are deliberately modest.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
