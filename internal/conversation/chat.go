package conversation

import (
	"context"

	"github.com/m3rciful/sitebot/internal/accesslink"
	"github.com/m3rciful/sitebot/internal/appeal"
)

// Button is an inline keyboard button: a callback (Key, Payload) or a link (URL).
type Button struct {
	Text    string
	Key     string
	Payload string
	URL     string
}

// Keyboard describes the markup attached to a message.
type Keyboard struct {
	Remove bool
	Reply  [][]string
	// Contact, when set, is the label of a one-time "share phone" button.
	Contact string
	Inline  [][]Button
}

// Message is an outgoing chat message.
type Message struct {
	Text     string
	HTML     bool
	Keyboard *Keyboard
}

// Chat is the conversation's view of the transport for the current chat.
type Chat interface {
	Send(ctx context.Context, msg Message) (int, error)
	Edit(ctx context.Context, messageID int, msg Message) error
	Delete(ctx context.Context, messageID int) error
}

// Directory stores the phone a chat shared.
type Directory interface {
	Lookup(ctx context.Context, chatID int64) (string, bool, error)
	Insert(ctx context.Context, chatID int64, phone string) error
}

// LinkClient requests access links from the website backend.
type LinkClient interface {
	RequestAccessLink(ctx context.Context, phone string, chatID int64, displayName string) (accesslink.Result, error)
}

// AppealSender forwards a finished appeal to the administrator.
type AppealSender interface {
	ComposeAndSend(ctx context.Context, d appeal.Draft) error
}
