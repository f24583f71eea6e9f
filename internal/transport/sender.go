package transport

import (
	"context"
	"errors"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by AdminSender before the bot is running.
var ErrNotBound = errors.New("transport: bot is not running")

// AdminSender sends plain text to arbitrary chats through the running bot.
type AdminSender struct {
	mu  sync.RWMutex
	api tele.API
}

// Bind attaches the running bot.
func (s *AdminSender) Bind(api tele.API) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = api
}

// SendText sends text to chatID without formatting.
func (s *AdminSender) SendText(_ context.Context, chatID int64, text string) error {
	s.mu.RLock()
	api := s.api
	s.mu.RUnlock()
	if api == nil {
		return ErrNotBound
	}
	_, err := api.Send(tele.ChatID(chatID), text)
	return err
}
