package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/sitebot/core/logger"
)

// Connect opens the database connection, configures the pool, and verifies connectivity.
// PostgreSQL gets up to readyTimeout to come up; SQLite fails fast.
func Connect(ctx context.Context, cfg Config, readyTimeout time.Duration) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db create dir: %w", err)
			}
		}
	}

	start := time.Now()
	db, err := connectWithWait(ctx, cfg, readyTimeout)
	took := time.Since(start)
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			slog.String("status", "fail"),
			slog.String("driver", cfg.Driver),
			slog.String("db", cfg.Target()),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.Info(ctx, "db", "db.connect",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)
	return db, nil
}

func connectWithWait(ctx context.Context, cfg Config, timeout time.Duration) (*sqlx.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		db, err := sqlx.ConnectContext(attemptCtx, cfg.Driver, cfg.DSN())
		cancel()
		if err == nil {
			return db, nil
		}
		if cfg.Driver != DriverPostgres || time.Now().After(deadline) {
			return nil, err
		}
		logger.Debug(ctx, "db", "db.wait",
			slog.String("driver", cfg.Driver),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
