package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/sitebot/core/logger"
)

// RunMigrations applies all up migrations found at the root of fsys.
// It uses its own connection because closing a migrate instance closes the
// underlying *sql.DB.
func RunMigrations(ctx context.Context, cfg Config, fsys fs.FS) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}

	files := listMigrationFiles(fsys)
	logger.Debug(ctx, "db.migrate", "resolve",
		slog.Int("files_total", len(files)),
		slog.String("files", strings.Join(files, ", ")),
	)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}

	conn, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("migrations connect: %w", err)
	}
	driver, err := databaseDriver(cfg.Driver, conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrations driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Driver, driver)
	if err != nil {
		_ = conn.Close()
		logger.Error(ctx, "db.migrate", "init",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	switch {
	case upErr == nil, errors.Is(upErr, migrate.ErrNoChange):
	default:
		logger.Error(ctx, "db.migrate", "apply",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	logger.Info(ctx, "db.migrate", "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", countApplied(files, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", took),
	)
	return nil
}

func databaseDriver(name string, conn *sql.DB) (database.Driver, error) {
	switch name {
	case DriverPostgres:
		return migratepg.WithInstance(conn, &migratepg.Config{})
	case DriverSQLite:
		return migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	}
	return nil, fmt.Errorf("unsupported driver %q", name)
}

func listMigrationFiles(fsys fs.FS) []string {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	c := 0
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			c++
		}
	}
	return c
}
