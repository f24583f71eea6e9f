// Package appeal formats a support appeal and forwards it to the administrator chat.
package appeal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/sitebot/core/logger"
)

const (
	component       = "appeal"
	timestampLayout = "2006-01-02 15:04:05"
	unknownPhone    = "unknown"
)

// Draft is the appeal a user assembled during the conversation.
type Draft struct {
	ChatID      int64
	Username    string
	Phone       string
	Theme       string
	Description string
}

// Sender delivers plain text to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// PhoneLookup resolves the stored phone of a chat.
type PhoneLookup interface {
	Lookup(ctx context.Context, chatID int64) (string, bool, error)
}

// Composer renders drafts and sends them to the administrator.
type Composer struct {
	sender  Sender
	phones  PhoneLookup
	adminID int64
	now     func() time.Time
}

// Option customises a Composer.
type Option func(*Composer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Composer sending to adminID.
func New(sender Sender, phones PhoneLookup, adminID int64, opts ...Option) (*Composer, error) {
	if sender == nil {
		return nil, errors.New("appeal: nil sender")
	}
	if adminID == 0 {
		return nil, errors.New("appeal: admin chat id is required")
	}
	c := &Composer{sender: sender, phones: phones, adminID: adminID, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ComposeAndSend sends one notification per call. An empty draft phone is
// resolved through the directory before rendering.
func (c *Composer) ComposeAndSend(ctx context.Context, d Draft) error {
	if d.Phone == "" && c.phones != nil {
		phone, found, err := c.phones.Lookup(ctx, d.ChatID)
		if err != nil {
			return fmt.Errorf("appeal: resolve phone: %w", err)
		}
		if found {
			d.Phone = phone
		}
	}

	start := time.Now()
	err := c.sender.SendText(ctx, c.adminID, Render(d, c.now()))
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("theme", logger.SanitizeLimit(d.Theme, 64)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Error(ctx, component, "send", append(attrs, slog.String("err", err.Error()))...)
		return fmt.Errorf("appeal: send to admin: %w", err)
	}
	logger.Info(ctx, component, "send", attrs...)
	return nil
}

// Render produces the administrator notification for d at ts.
func Render(d Draft, ts time.Time) string {
	phone := d.Phone
	if phone == "" {
		phone = unknownPhone
	}
	var b strings.Builder
	b.WriteString("--------------------\n")
	b.WriteString("Date and time: " + ts.Format(timestampLayout) + "\n")
	b.WriteString("chat id: " + strconv.FormatInt(d.ChatID, 10) + "\n")
	b.WriteString("username: " + d.Username + "\n")
	b.WriteString("phone: " + phone + "\n")
	b.WriteString("Theme: " + d.Theme + "\n")
	b.WriteString("Message text: " + d.Description + "\n")
	b.WriteString("---------------------")
	return b.String()
}
