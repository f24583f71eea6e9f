package telegram

import (
	"log/slog"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sitebot/core/logger"
	"github.com/m3rciful/sitebot/core/telegram/commands"
)

// Registry holds the slash commands a bot exposes.
type Registry struct {
	commands map[string]commands.Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// RegisterCommand adds a new command. Invalid or duplicate entries are logged and skipped.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) bool {
	ctx := logger.Background()
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.Warn(ctx, "tg", "register.command.skip",
			slog.String("name", name),
			slog.String("cause", "invalid"),
		)
		return false
	}
	if name[0] != '/' {
		logger.Warn(ctx, "tg", "register.command.skip",
			slog.String("name", name),
			slog.String("cause", "no_slash_prefix"),
		)
		return false
	}
	if _, exists := r.commands[name]; exists {
		logger.Warn(ctx, "tg", "register.command.duplicate", slog.String("name", name))
		return false
	}
	r.commands[name] = cmd
	return true
}

// ListCommands returns the registered commands sorted by name, optionally without hidden ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: cmd, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// Routes binds every registered command and its aliases to its handler.
func (r *Registry) Routes() []Route {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var routes []Route
	for _, name := range names {
		cmd := r.commands[name]
		routes = append(routes, Route{Endpoint: name, Handler: cmd.Handler})
		for _, alias := range cmd.Aliases {
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			routes = append(routes, Route{Endpoint: alias, Handler: cmd.Handler})
		}
	}
	return routes
}

// InitBotCommands publishes the visible commands to the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	cmds := reg.ListCommands(true)
	if len(cmds) == 0 {
		return
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(logger.Background(), "tg", "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
