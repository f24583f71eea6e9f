// Package transport turns telebot updates into conversation events.
package transport

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sitebot/core/telegram"
	"github.com/m3rciful/sitebot/core/telegram/callbacks"
	"github.com/m3rciful/sitebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/sitebot/core/telegram/helpers"
	"github.com/m3rciful/sitebot/core/telegram/router"
	"github.com/m3rciful/sitebot/internal/conversation"
)

// Conversation consumes events for a chat.
type Conversation interface {
	Handle(ctx context.Context, chat conversation.Chat, ev conversation.Event) error
}

// Handlers bridges telebot endpoints to a Conversation.
type Handlers struct {
	conv Conversation
}

// NewHandlers wraps conv.
func NewHandlers(conv Conversation) *Handlers {
	return &Handlers{conv: conv}
}

// Register adds the /start command to reg.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Open the main menu",
	})
}

// Routes returns every update route the bot serves.
func (h *Handlers) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg)
	return append(routes, router.UpdateRoutes(router.Handlers{
		Text:     h.Text,
		Callback: h.Callback,
		Contact:  h.Contact,
	})...)
}

// Start handles the /start command.
func (h *Handlers) Start(c tele.Context) error {
	return h.dispatch(c, conversation.EventStart)
}

// Text handles plain text messages.
func (h *Handlers) Text(c tele.Context) error {
	return h.dispatch(c, conversation.EventText)
}

// Callback handles inline button presses.
func (h *Handlers) Callback(c tele.Context) error {
	return h.dispatch(c, conversation.EventCallback)
}

// Contact handles a shared phone contact.
func (h *Handlers) Contact(c tele.Context) error {
	return h.dispatch(c, conversation.EventContact)
}

func (h *Handlers) dispatch(c tele.Context, kind conversation.EventKind) error {
	if c.Chat() == nil {
		return router.ErrSkipped
	}
	ctx := tghelpers.BuildContext(c)
	err := h.conv.Handle(ctx, newChat(c), EventFrom(c, kind))
	if errors.Is(err, conversation.ErrNoTransition) {
		return router.ErrSkipped
	}
	return err
}

// EventFrom extracts the conversation event of the given kind from an update.
func EventFrom(c tele.Context, kind conversation.EventKind) conversation.Event {
	ev := conversation.Event{Kind: kind}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.Username = u.Username
		ev.DisplayName = displayName(u)
	}

	switch kind {
	case conversation.EventText:
		if msg := c.Message(); msg != nil {
			ev.Text = msg.Text
		}
	case conversation.EventCallback:
		if cb := c.Callback(); cb != nil {
			ev.CallbackKey, ev.CallbackPayload = callbacks.ParseCallbackData(cb)
			if cb.Message != nil {
				ev.MessageID = cb.Message.ID
			}
		}
	case conversation.EventContact:
		if msg := c.Message(); msg != nil && msg.Contact != nil {
			ev.Phone = strings.TrimSpace(msg.Contact.PhoneNumber)
		}
	}
	return ev
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
