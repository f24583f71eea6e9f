package conversation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m3rciful/sitebot/internal/appeal"
)

const anyState State = ""

type transition struct {
	name string
	from State
	when func(Event) bool
	// guard, when set, must also accept the event for the row to match.
	guard func(*Machine, Event) bool
	run   func(*turn) (State, error)
}

// turn is the context of a single transition run.
type turn struct {
	m    *Machine
	ctx  context.Context
	chat Chat
	ev   Event
	s    *Session
}

func isStart(ev Event) bool { return ev.Kind == EventStart }

func isContact(ev Event) bool { return ev.Kind == EventContact && ev.Phone != "" }

func anyText(ev Event) bool { return ev.Kind == EventText }

func textIs(label string) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventText && ev.Text == label }
}

func callbackIs(key string) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventCallback && ev.CallbackKey == key }
}

// transitionTable is scanned top to bottom; the first match wins.
func transitionTable() []transition {
	return []transition{
		{name: "start", from: anyState, when: isStart, run: (*turn).showMenu},

		{name: "login", from: MainMenu, when: textIs(LabelLogin), run: (*turn).login},
		{name: "choose_theme", from: MainMenu, when: textIs(LabelContactUs), run: (*turn).offerThemes},
		{name: "menu", from: MainMenu, when: textIs(LabelBackToMenu), run: (*turn).showMenu},
		{name: "help", from: MainMenu, when: anyText, run: (*turn).help},

		{name: "theme_selected", from: ChooseTheme, when: callbackIs(CallbackTheme), guard: (*Machine).knownTheme, run: (*turn).selectTheme},

		{name: "describe", from: WriteToAdmin, when: anyText, run: (*turn).describe},

		{name: "approve", from: ApproveAppeal, when: callbackIs(CallbackApprove), run: (*turn).approve},
		{name: "decline", from: ApproveAppeal, when: callbackIs(CallbackDecline), run: (*turn).decline},

		{name: "appeal_phone", from: SendPhoneToAdmin, when: isContact, run: (*turn).sendWithSharedPhone},

		{name: "login_phone", from: UserChoice, when: isContact, run: (*turn).loginWithSharedPhone},

		{name: "return", from: AuthorizeUser, when: textIs(LabelReturn), run: (*turn).returnToLogin},
		{name: "back_to_menu", from: AuthorizeUser, when: callbackIs(CallbackBackToMenu), run: (*turn).showMenu},
	}
}

func (t *turn) send(msg Message) (int, error) {
	return t.chat.Send(t.ctx, msg)
}

// flash sends and immediately deletes a placeholder, which clears the reply keyboard.
func (t *turn) flash(text string) error {
	id, err := t.send(placeholderView(text))
	if err != nil {
		return err
	}
	return t.chat.Delete(t.ctx, id)
}

// phone returns the session phone, loading it from the directory when needed.
func (t *turn) phone() (string, error) {
	if t.s.PhoneNumber != "" {
		return t.s.PhoneNumber, nil
	}
	phone, found, err := t.m.dir.Lookup(t.ctx, t.ev.ChatID)
	if err != nil {
		return "", err
	}
	if found {
		t.s.PhoneNumber = phone
	}
	return t.s.PhoneNumber, nil
}

func (t *turn) storeSharedPhone() error {
	if err := t.m.dir.Insert(t.ctx, t.ev.ChatID, t.ev.Phone); err != nil {
		return err
	}
	t.s.PhoneNumber = t.ev.Phone
	return nil
}

func (t *turn) showMenu() (State, error) {
	if t.ev.Kind == EventCallback && t.ev.MessageID != 0 {
		if err := t.chat.Delete(t.ctx, t.ev.MessageID); err != nil {
			return "", err
		}
	}
	if _, err := t.send(greetingView()); err != nil {
		return "", err
	}
	return MainMenu, nil
}

func (t *turn) help() (State, error) {
	if _, err := t.send(helpView()); err != nil {
		return "", err
	}
	return MainMenu, nil
}

func (t *turn) login() (State, error) {
	phone, err := t.phone()
	if err != nil {
		return "", err
	}
	if phone == "" {
		if _, err := t.send(loginPhoneView()); err != nil {
			return "", err
		}
		return UserChoice, nil
	}
	if err := t.renderLinks(phone); err != nil {
		return "", err
	}
	return AuthorizeUser, nil
}

// returnToLogin repeats the login branch but parks a known user in the main menu.
func (t *turn) returnToLogin() (State, error) {
	next, err := t.login()
	if err != nil {
		return "", err
	}
	if next == AuthorizeUser {
		return MainMenu, nil
	}
	return next, nil
}

func (t *turn) loginWithSharedPhone() (State, error) {
	if err := t.storeSharedPhone(); err != nil {
		return "", err
	}
	if err := t.renderLinks(t.s.PhoneNumber); err != nil {
		return "", err
	}
	return AuthorizeUser, nil
}

func (t *turn) renderLinks(phone string) error {
	res, err := t.m.links.RequestAccessLink(t.ctx, phone, t.ev.ChatID, t.ev.DisplayName)
	if err != nil {
		return err
	}
	if err := t.flash(placeholderLinks); err != nil {
		return err
	}
	_, err = t.send(linksView(res))
	return err
}

func (t *turn) offerThemes() (State, error) {
	if err := t.flash(placeholderTheme); err != nil {
		return "", err
	}
	id, err := t.send(themesView(t.m.themes))
	if err != nil {
		return "", err
	}
	t.s.PendingMessageID = id
	return ChooseTheme, nil
}

func (m *Machine) themeAt(payload string) (string, bool) {
	idx, err := strconv.Atoi(payload)
	if err != nil || idx < 0 || idx >= len(m.themes) {
		return "", false
	}
	return m.themes[idx], true
}

func (m *Machine) knownTheme(ev Event) bool {
	_, ok := m.themeAt(ev.CallbackPayload)
	return ok
}

func (t *turn) selectTheme() (State, error) {
	theme, ok := t.m.themeAt(t.ev.CallbackPayload)
	if !ok {
		return "", fmt.Errorf("conversation: unknown theme %q", t.ev.CallbackPayload)
	}

	target := t.s.PendingMessageID
	if target == 0 {
		target = t.ev.MessageID
	}
	if err := t.chat.Edit(t.ctx, target, describeView(theme)); err != nil {
		return "", err
	}
	t.s.MailTheme = theme
	t.s.PendingMessageID = 0
	return WriteToAdmin, nil
}

func (t *turn) describe() (State, error) {
	if _, err := t.send(previewView(t.s.MailTheme, t.ev.Text)); err != nil {
		return "", err
	}
	t.s.ProblemDescription = t.ev.Text
	return ApproveAppeal, nil
}

func (t *turn) approve() (State, error) {
	phone, err := t.phone()
	if err != nil {
		return "", err
	}
	if phone == "" {
		if _, err := t.send(appealPhoneView()); err != nil {
			return "", err
		}
		return SendPhoneToAdmin, nil
	}
	return t.submitAppeal()
}

func (t *turn) sendWithSharedPhone() (State, error) {
	if err := t.storeSharedPhone(); err != nil {
		return "", err
	}
	return t.submitAppeal()
}

func (t *turn) submitAppeal() (State, error) {
	err := t.m.appeals.ComposeAndSend(t.ctx, appeal.Draft{
		ChatID:      t.ev.ChatID,
		Username:    t.ev.appealName(),
		Phone:       t.s.PhoneNumber,
		Theme:       t.s.MailTheme,
		Description: t.s.ProblemDescription,
	})
	if err != nil {
		return "", err
	}
	t.s.clearDraft()
	if _, err := t.send(appealSentView()); err != nil {
		return "", err
	}
	return MainMenu, nil
}

func (t *turn) decline() (State, error) {
	t.s.clearDraft()
	return t.showMenu()
}
