// Package router wraps update handlers with per-handler summary logging.
package router

import (
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sitebot/core/telegram"
	"github.com/m3rciful/sitebot/core/telegram/callbacks"
)

// ErrSkipped lets a handler report that it deliberately ignored an update.
var ErrSkipped = errors.New("update skipped")

// Handlers groups the update handlers a conversational bot needs.
type Handlers struct {
	Text     tele.HandlerFunc
	Callback tele.HandlerFunc
	Contact  tele.HandlerFunc
}

// UpdateRoutes binds text, callback and contact updates to the given handlers.
// Callback queries are always answered so the client stops its spinner.
func UpdateRoutes(h Handlers) []tg.Route {
	var routes []tg.Route
	if h.Text != nil {
		routes = append(routes, tg.Route{
			Endpoint: tele.OnText,
			Handler: func(c tele.Context) error {
				return handleWithSummary(c, "text", time.Now(), func() error { return h.Text(c) })
			},
		})
	}
	if h.Callback != nil {
		routes = append(routes, tg.Route{
			Endpoint: tele.OnCallback,
			Handler: func(c tele.Context) error {
				start := time.Now()
				if c.Callback() == nil {
					return nil
				}
				key := callbacks.CallbackKey(c)
				_ = c.Respond()
				return handleWithSummary(c, "callback."+normalizeHandlerName(key), start,
					func() error { return h.Callback(c) },
					slog.String("cb_key", key),
				)
			},
		})
	}
	if h.Contact != nil {
		routes = append(routes, tg.Route{
			Endpoint: tele.OnContact,
			Handler: func(c tele.Context) error {
				return handleWithSummary(c, "contact", time.Now(), func() error { return h.Contact(c) })
			},
		})
	}
	return routes
}

// CommandRoutes wraps registry commands with summary logging.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	routes := reg.Routes()
	for i, r := range routes {
		name, _ := r.Endpoint.(string)
		handler := r.Handler
		routes[i].Handler = func(c tele.Context) error {
			return handleWithSummary(c, normalizeHandlerName(name), time.Now(), func() error { return handler(c) })
		}
	}
	return routes
}
