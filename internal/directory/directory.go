// Package directory stores the phone number a chat shared with the bot.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/m3rciful/sitebot/core/logger"
)

const component = "directory"

// Directory maps a chat id to the phone number first shared in that chat.
type Directory struct {
	db *sqlx.DB

	lookupQuery string
	insertQuery string
}

// New builds a Directory on top of an open connection with the users table migrated.
func New(db *sqlx.DB) *Directory {
	return &Directory{
		db:          db,
		lookupQuery: db.Rebind(`SELECT phone_number FROM users WHERE telegram_id = ?`),
		// No ON CONFLICT: tables created before the migrations have no key on telegram_id.
		insertQuery: db.Rebind(`INSERT INTO users (telegram_id, phone_number)
			SELECT CAST(? AS BIGINT), CAST(? AS TEXT) WHERE NOT EXISTS (SELECT 1 FROM users WHERE telegram_id = ?)`),
	}
}

// Lookup returns the stored phone for chatID. A missing row reports found=false and no error.
func (d *Directory) Lookup(ctx context.Context, chatID int64) (string, bool, error) {
	start := time.Now()
	var phone string
	err := d.db.GetContext(ctx, &phone, d.lookupQuery, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		logger.Debug(ctx, component, "lookup",
			slog.String("result", "absent"),
			slog.Duration("duration", logger.Took(start)),
		)
		return "", false, nil
	case err != nil:
		logger.Error(ctx, component, "lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return "", false, fmt.Errorf("directory: lookup %d: %w", chatID, err)
	}
	logger.Debug(ctx, component, "lookup",
		slog.String("result", "found"),
		slog.String("phone", logger.MaskPhone(phone)),
		slog.Duration("duration", logger.Took(start)),
	)
	return phone, true, nil
}

// Insert stores phone for chatID unless a value is already present; the first value wins.
func (d *Directory) Insert(ctx context.Context, chatID int64, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("directory: insert %d: empty phone", chatID)
	}
	start := time.Now()
	res, err := d.db.ExecContext(ctx, d.insertQuery, chatID, phone, chatID)
	if isDuplicate(err) {
		// A concurrent insert won between the existence check and the write.
		res, err = nil, nil
	}
	if err != nil {
		logger.Error(ctx, component, "insert",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("directory: insert %d: %w", chatID, err)
	}
	result := "kept_existing"
	if res != nil {
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			result = "stored"
		}
	}
	logger.Info(ctx, component, "insert",
		slog.String("status", "ok"),
		slog.String("result", result),
		slog.String("phone", logger.MaskPhone(phone)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
