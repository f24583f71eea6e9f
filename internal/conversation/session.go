package conversation

import "sync"

// Data is the per-chat scratch state accumulated across turns.
type Data struct {
	State              State
	PhoneNumber        string
	MailTheme          string
	ProblemDescription string
	PendingMessageID   int
}

// Session guards Data so a chat handles one event at a time.
type Session struct {
	mu sync.Mutex
	Data
}

// NewSession returns a session parked in the main menu.
func NewSession() *Session {
	return &Session{Data: Data{State: MainMenu}}
}

// Snapshot copies the session data under its lock.
func (s *Session) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Data
}

func (s *Session) clearDraft() {
	s.MailTheme = ""
	s.ProblemDescription = ""
	s.PendingMessageID = 0
}
