// Package app wires the sitebot components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/sitebot/core/bootstrap"
	"github.com/m3rciful/sitebot/core/logger"
	tg "github.com/m3rciful/sitebot/core/telegram"
	"github.com/m3rciful/sitebot/internal/accesslink"
	"github.com/m3rciful/sitebot/internal/appeal"
	"github.com/m3rciful/sitebot/internal/conversation"
	"github.com/m3rciful/sitebot/internal/directory"
	"github.com/m3rciful/sitebot/internal/transport"
)

// App holds the initialized components of a running bot.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	admin    *transport.AdminSender
	handlers *transport.Handlers
	registry *tg.Registry
}

// Options lets tests replace the infrastructure bootstrap.
type Options struct {
	Bootstrap func(context.Context, bootstrap.Options) (*bootstrap.Result, error)
}

// Bootstrap initializes logging and storage and builds the conversation.
func Bootstrap(ctx context.Context, cfg *Config, opts ...Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	run := bootstrap.Run
	for _, o := range opts {
		if o.Bootstrap != nil {
			run = o.Bootstrap
		}
	}

	res, err := run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: directory.Migrations(),
	})
	if err != nil {
		return nil, err
	}

	a, err := build(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	logger.Info(ctx, "app", "bootstrap",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Database.Driver),
		slog.Int("themes", len(cfg.Support.Themes)),
	)
	return a, nil
}

func build(cfg *Config, db *sqlx.DB) (*App, error) {
	dir := directory.New(db)

	links, err := accesslink.New(accesslink.Options{
		APIURL:       cfg.API.URL,
		GuestLinkURL: cfg.API.GuestLinkURL,
		Timeout:      cfg.API.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	admin := &transport.AdminSender{}
	composer, err := appeal.New(admin, dir, cfg.Telegram.AdminID)
	if err != nil {
		return nil, err
	}

	machine, err := conversation.New(conversation.Deps{
		Directory:  dir,
		Links:      links,
		Appeals:    composer,
		Themes:     cfg.Support.Themes,
		SessionTTL: cfg.Session.IdleTTL(),
	})
	if err != nil {
		return nil, err
	}

	handlers := transport.NewHandlers(machine)
	reg := tg.NewRegistry()
	handlers.Register(reg)

	return &App{cfg: cfg, db: db, admin: admin, handlers: handlers, registry: reg}, nil
}

// TelegramRunOptions describes how the bot runtime should be started.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a == nil || a.cfg == nil {
		return tg.RunOptions{}, fmt.Errorf("app: not bootstrapped")
	}
	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      a.handlers.Routes(a.registry),
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			if rt.Bot == nil {
				return errors.New("app: runtime has no bot")
			}
			a.admin.Bind(rt.Bot)
			return nil
		},
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
