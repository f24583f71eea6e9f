package transport

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sitebot/core/telegram/keyboard"
	"github.com/m3rciful/sitebot/core/telegram/middleware"
	"github.com/m3rciful/sitebot/internal/conversation"
)

// chat adapts the update's tele.Context to conversation.Chat.
type chat struct {
	c   tele.Context
	api tele.API
}

func newChat(c tele.Context) chat {
	return chat{c: c, api: c.Bot()}
}

func (ch chat) recipient() *tele.Chat {
	return ch.c.Chat()
}

func (ch chat) Send(_ context.Context, msg conversation.Message) (int, error) {
	sent, err := ch.api.Send(ch.recipient(), msg.Text, sendOptions(msg))
	if err != nil {
		return 0, err
	}
	middleware.CountMessage(ch.c, msg.Keyboard != nil)
	return sent.ID, nil
}

func (ch chat) Edit(_ context.Context, messageID int, msg conversation.Message) error {
	_, err := ch.api.Edit(ch.stored(messageID), msg.Text, sendOptions(msg))
	if err != nil {
		return err
	}
	middleware.CountMessage(ch.c, msg.Keyboard != nil)
	return nil
}

func (ch chat) Delete(_ context.Context, messageID int) error {
	return ch.api.Delete(ch.stored(messageID))
}

func (ch chat) stored(messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: ch.recipient().ID}
}

func sendOptions(msg conversation.Message) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: markup(msg.Keyboard)}
	if msg.HTML {
		opts.ParseMode = tele.ModeHTML
	}
	return opts
}

func markup(kb *conversation.Keyboard) *tele.ReplyMarkup {
	switch {
	case kb == nil:
		return nil
	case kb.Remove:
		return keyboard.RemoveKeyboard()
	case kb.Contact != "":
		return keyboard.ContactRequest(kb.Contact)
	case len(kb.Inline) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(kb.Inline))
		for _, row := range kb.Inline {
			r := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Key, Data: b.Payload, URL: b.URL})
			}
			rows = append(rows, r)
		}
		return keyboard.InlineButtonsRows(rows...)
	case len(kb.Reply) > 0:
		return keyboard.ReplyButtons(kb.Reply...)
	}
	return nil
}
