// Package conversation drives the support bot dialogue as a table of
// (state, event) transitions over a per-chat session.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/sitebot/core/logger"
	"github.com/m3rciful/sitebot/core/telegram/state"
)

const component = "conversation"

// ErrNoTransition reports an event the current state does not react to.
// Nothing was sent and the state is unchanged.
var ErrNoTransition = errors.New("conversation: no transition for event")

// Deps are the collaborators a Machine drives.
type Deps struct {
	Directory Directory
	Links     LinkClient
	Appeals   AppealSender
	Themes    []string
	// SessionTTL evicts sessions idle for longer; 0 keeps them forever.
	SessionTTL time.Duration
}

// Machine dispatches events to transitions and stores the resulting state.
type Machine struct {
	sessions    *state.Store[*Session]
	dir         Directory
	links       LinkClient
	appeals     AppealSender
	themes      []string
	transitions []transition
}

// New validates deps and builds a Machine.
func New(deps Deps) (*Machine, error) {
	switch {
	case deps.Directory == nil:
		return nil, errors.New("conversation: directory is required")
	case deps.Links == nil:
		return nil, errors.New("conversation: link client is required")
	case deps.Appeals == nil:
		return nil, errors.New("conversation: appeal sender is required")
	}
	themes := make([]string, 0, len(deps.Themes))
	for _, t := range deps.Themes {
		if t = strings.TrimSpace(t); t != "" {
			themes = append(themes, t)
		}
	}
	if len(themes) == 0 {
		return nil, errors.New("conversation: at least one support theme is required")
	}
	return &Machine{
		sessions:    state.NewStore(deps.SessionTTL, NewSession),
		dir:         deps.Directory,
		links:       deps.Links,
		appeals:     deps.Appeals,
		themes:      themes,
		transitions: transitionTable(),
	}, nil
}

// Session returns a copy of the chat's session data, if one exists.
func (m *Machine) Session(chatID int64) (Data, bool) {
	s, ok := m.sessions.Peek(chatID)
	if !ok {
		return Data{}, false
	}
	return s.Snapshot(), true
}

// Handle runs the first transition matching the chat's state and ev.
// Events of one chat are serialised; a failed transition keeps the state.
func (m *Machine) Handle(ctx context.Context, chat Chat, ev Event) error {
	s := m.sessions.Get(ev.ChatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.State
	ctx = logger.WithState(ctx, string(from))

	tr, ok := m.match(from, ev)
	if !ok {
		logger.Debug(ctx, component, "transition",
			slog.String("outcome", "skip"),
			slog.String("kind", ev.Kind.String()),
		)
		return ErrNoTransition
	}

	start := time.Now()
	t := &turn{m: m, ctx: ctx, chat: chat, ev: ev, s: s}
	next, err := tr.run(t)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("transition", tr.name),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Error(ctx, component, "transition", append(attrs, slog.String("err", err.Error()))...)
		return err
	}
	s.State = next
	logger.Info(ctx, component, "transition", append(attrs,
		slog.String("next_state", string(next)),
		slog.Int("sessions", m.sessions.Len()),
	)...)
	return nil
}

func (m *Machine) match(from State, ev Event) (transition, bool) {
	for _, tr := range m.transitions {
		if tr.from != anyState && tr.from != from {
			continue
		}
		if tr.when(ev) && (tr.guard == nil || tr.guard(m, ev)) {
			return tr, true
		}
	}
	return transition{}, false
}
