package conversation

// EventKind tells what the user did.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventText
	EventCallback
	EventContact
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventText:
		return "text"
	case EventCallback:
		return "callback"
	case EventContact:
		return "contact"
	}
	return "unknown"
}

// Callback keys carried by inline buttons.
const (
	CallbackTheme      = "theme"
	CallbackApprove    = "approve"
	CallbackDecline    = "decline"
	CallbackBackToMenu = "back_to_menu"
)

// Event is one inbound update, already stripped of transport details.
type Event struct {
	Kind   EventKind
	ChatID int64
	UserID int64
	// Username is the bare account handle; DisplayName is "@handle" or the full name.
	Username    string
	DisplayName string

	Text            string
	CallbackKey     string
	CallbackPayload string
	Phone           string
	// MessageID is the message that carried the pressed button.
	MessageID int
}

// appealName is the handle when the user has one, the display name otherwise.
func (e Event) appealName() string {
	if e.Username != "" {
		return e.Username
	}
	return e.DisplayName
}
