package directory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/sitebot/core/database"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	ctx := context.Background()
	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "users.sqlite3"),
	}
	require.NoError(t, coredatabase.RunMigrations(ctx, cfg, Migrations()))
	db, err := coredatabase.Connect(ctx, cfg, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestInsertThenLookup(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	require.NoError(t, d.Insert(ctx, 42, "+1555"))

	phone, found, err := d.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "+1555", phone)

	phone, found, err = d.Lookup(ctx, 999)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, phone)
}

func TestInsertKeepsFirstValue(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	require.NoError(t, d.Insert(ctx, 7, "+10000000000"))
	require.NoError(t, d.Insert(ctx, 7, "+19999999999"))

	phone, found, err := d.Lookup(ctx, 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "+10000000000", phone)
}

func TestInsertRejectsEmptyPhone(t *testing.T) {
	d := newTestDirectory(t)
	assert.Error(t, d.Insert(context.Background(), 1, "  "))
}

func TestConcurrentInsertsSameChat(t *testing.T) {
	ctx := context.Background()
	d := newTestDirectory(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Insert(ctx, 5, "+15550000000"))
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, d.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE telegram_id = 5`))
	assert.Equal(t, 1, count)
}

func TestInsertIntoTableWithoutKey(t *testing.T) {
	ctx := context.Background()
	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "users.sqlite3"),
	}
	require.NoError(t, cfg.Normalize())

	legacy, err := coredatabase.Connect(ctx, cfg, 0)
	require.NoError(t, err)
	_, err = legacy.ExecContext(ctx, `CREATE TABLE Users (telegram_id INT, phone_number CHAR)`)
	require.NoError(t, err)
	_, err = legacy.ExecContext(ctx, `INSERT INTO Users VALUES (1, '+1')`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	require.NoError(t, coredatabase.RunMigrations(ctx, cfg, Migrations()))
	db, err := coredatabase.Connect(ctx, cfg, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	d := New(db)

	phone, found, err := d.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "+1", phone)

	require.NoError(t, d.Insert(ctx, 2, "+2"))
	require.NoError(t, d.Insert(ctx, 1, "+9"))

	phone, found, err = d.Lookup(ctx, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "+2", phone)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE telegram_id = 1`))
	assert.Equal(t, 1, count)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "twice.sqlite3"),
	}
	require.NoError(t, coredatabase.RunMigrations(ctx, cfg, Migrations()))
	require.NoError(t, coredatabase.RunMigrations(ctx, cfg, Migrations()))
}
