package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/sitebot/internal/accesslink"
)

const chatID int64 = 42

type harness struct {
	m       *Machine
	chat    *fakeChat
	dir     *fakeDirectory
	links   *fakeLinks
	appeals *fakeAppeals
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		chat:    &fakeChat{},
		dir:     newFakeDirectory(),
		links:   &fakeLinks{result: accesslink.LoggedIn{LoginURL: "https://site/login"}},
		appeals: &fakeAppeals{},
	}
	m, err := New(Deps{
		Directory: h.dir,
		Links:     h.links,
		Appeals:   h.appeals,
		Themes:    []string{"Billing", " Access ", "", "Other"},
	})
	require.NoError(t, err)
	h.m = m
	return h
}

func (h *harness) handle(t *testing.T, ev Event) error {
	t.Helper()
	if ev.ChatID == 0 {
		ev.ChatID = chatID
	}
	return h.m.Handle(context.Background(), h.chat, ev)
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	d, ok := h.m.Session(chatID)
	require.True(t, ok)
	return d.State
}

func (h *harness) setState(st State) {
	s := h.m.sessions.Get(chatID)
	s.mu.Lock()
	s.State = st
	s.mu.Unlock()
}

func text(s string) Event { return Event{Kind: EventText, Text: s, Username: "alice", DisplayName: "@alice"} }

func callback(key, payload string, messageID int) Event {
	return Event{Kind: EventCallback, CallbackKey: key, CallbackPayload: payload, MessageID: messageID, Username: "alice"}
}

func contact(phone string) Event {
	return Event{Kind: EventContact, Phone: phone, Username: "alice", DisplayName: "@alice"}
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{Links: &fakeLinks{}, Appeals: &fakeAppeals{}, Themes: []string{"a"}})
	assert.Error(t, err)
	_, err = New(Deps{Directory: newFakeDirectory(), Links: &fakeLinks{}, Appeals: &fakeAppeals{}, Themes: []string{" "}})
	assert.Error(t, err)
}

func TestStartShowsMenuFromAnyState(t *testing.T) {
	states := []State{MainMenu, ChooseTheme, WriteToAdmin, ApproveAppeal, SendPhoneToAdmin, Description, UserChoice, AuthorizeUser}
	for _, st := range states {
		t.Run(string(st), func(t *testing.T) {
			h := newHarness(t)
			h.setState(st)
			require.NoError(t, h.handle(t, Event{Kind: EventStart}))
			assert.Equal(t, MainMenu, h.state(t))
			assert.Equal(t, []string{"send"}, h.chat.kinds())
			assert.Equal(t, [][]string{{LabelLogin}, {LabelContactUs}}, h.chat.last().msg.Keyboard.Reply)
		})
	}
}

func TestFreshSessionStartsInMainMenu(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text("hi there")))
	assert.Equal(t, MainMenu, h.state(t))
	assert.Contains(t, h.chat.last().msg.Text, "did not understand")
}

func TestLoginWithUnknownPhoneAsksForContact(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text(LabelLogin)))

	assert.Equal(t, UserChoice, h.state(t))
	assert.Empty(t, h.links.calls)
	assert.Equal(t, LabelSharePhone, h.chat.last().msg.Keyboard.Contact)
}

func TestLoginWithDirectoryPhoneRendersLinks(t *testing.T) {
	h := newHarness(t)
	h.dir.phones[chatID] = "+1555"

	require.NoError(t, h.handle(t, text(LabelLogin)))

	assert.Equal(t, AuthorizeUser, h.state(t))
	require.Len(t, h.links.calls, 1)
	assert.Equal(t, linkCall{phone: "+1555", chatID: chatID, displayName: "@alice"}, h.links.calls[0])
	// placeholder sent and removed before the links
	assert.Equal(t, []string{"send", "delete", "send"}, h.chat.kinds())
	assert.True(t, h.chat.ops[0].msg.Keyboard.Remove)
	assert.Equal(t, h.chat.ops[0].messageID, h.chat.ops[1].messageID)

	kb := h.chat.last().msg.Keyboard.Inline
	require.Len(t, kb, 2)
	assert.Equal(t, "https://site/login", kb[0][0].URL)
	assert.Equal(t, CallbackBackToMenu, kb[1][0].Key)

	d, _ := h.m.Session(chatID)
	assert.Equal(t, "+1555", d.PhoneNumber)
}

func TestLoginRegistrationLinks(t *testing.T) {
	h := newHarness(t)
	h.dir.phones[chatID] = "+1555"
	h.links.result = accesslink.NeedsRegistration{RegisterURL: "https://r", GuestURL: "https://g"}

	require.NoError(t, h.handle(t, text(LabelLogin)))
	kb := h.chat.last().msg.Keyboard.Inline
	require.Len(t, kb, 3)
	assert.Equal(t, "https://r", kb[0][0].URL)
	assert.Equal(t, "https://g", kb[1][0].URL)
	assert.Contains(t, h.chat.last().msg.Text, "<b>register</b>")
}

func TestLoginLinkFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.dir.phones[chatID] = "+1555"
	boom := &accesslink.StatusError{Op: "link request", StatusCode: 500}
	h.links.err = boom

	err := h.handle(t, text(LabelLogin))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, MainMenu, h.state(t))
	assert.Empty(t, h.chat.ops)
}

func TestSharedContactInUserChoice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text(LabelLogin)))
	require.NoError(t, h.handle(t, contact("+1777")))

	assert.Equal(t, AuthorizeUser, h.state(t))
	assert.Equal(t, "+1777", h.dir.phones[chatID])
	require.Len(t, h.links.calls, 1)
	assert.Equal(t, "+1777", h.links.calls[0].phone)
}

func TestAuthorizeUserReturnAndBack(t *testing.T) {
	h := newHarness(t)
	h.dir.phones[chatID] = "+1555"
	require.NoError(t, h.handle(t, text(LabelLogin)))

	require.NoError(t, h.handle(t, text(LabelReturn)))
	assert.Equal(t, MainMenu, h.state(t))
	assert.Len(t, h.links.calls, 2)

	h.setState(AuthorizeUser)
	require.NoError(t, h.handle(t, callback(CallbackBackToMenu, "", 555)))
	assert.Equal(t, MainMenu, h.state(t))
	ops := h.chat.ops[len(h.chat.ops)-2:]
	assert.Equal(t, chatOp{kind: "delete", messageID: 555}, ops[0])
	assert.Equal(t, "send", ops[1].kind)
}

func TestAuthorizeUserReturnWithoutPhone(t *testing.T) {
	h := newHarness(t)
	h.setState(AuthorizeUser)
	require.NoError(t, h.handle(t, text(LabelReturn)))
	assert.Equal(t, UserChoice, h.state(t))
}

func TestBackToMenuText(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text(LabelBackToMenu)))
	assert.Equal(t, MainMenu, h.state(t))
	assert.Contains(t, h.chat.last().msg.Text, "Choose an option")
}

func TestAppealFlowWithKnownPhone(t *testing.T) {
	h := newHarness(t)
	h.dir.phones[chatID] = "+10000000000"

	require.NoError(t, h.handle(t, text(LabelContactUs)))
	assert.Equal(t, ChooseTheme, h.state(t))
	assert.Equal(t, []string{"send", "delete", "send"}, h.chat.kinds())
	picklist := h.chat.last()
	require.Len(t, picklist.msg.Keyboard.Inline, 2)
	assert.Len(t, picklist.msg.Keyboard.Inline[0], 2)
	assert.Equal(t, "Access", picklist.msg.Keyboard.Inline[0][1].Text)
	assert.Equal(t, "1", picklist.msg.Keyboard.Inline[0][1].Payload)

	require.NoError(t, h.handle(t, callback(CallbackTheme, "0", picklist.messageID)))
	assert.Equal(t, WriteToAdmin, h.state(t))
	edit := h.chat.last()
	assert.Equal(t, "edit", edit.kind)
	assert.Equal(t, picklist.messageID, edit.messageID)
	assert.Contains(t, edit.msg.Text, "<i>Billing</i>")

	require.NoError(t, h.handle(t, text("Refund request")))
	assert.Equal(t, ApproveAppeal, h.state(t))
	preview := h.chat.last().msg
	assert.Contains(t, preview.Text, "Refund request")
	assert.Equal(t, CallbackApprove, preview.Keyboard.Inline[0][0].Key)
	assert.Equal(t, CallbackDecline, preview.Keyboard.Inline[0][1].Key)

	require.NoError(t, h.handle(t, callback(CallbackApprove, "", 0)))
	assert.Equal(t, MainMenu, h.state(t))
	require.Len(t, h.appeals.drafts, 1)
	d := h.appeals.drafts[0]
	assert.Equal(t, "Billing", d.Theme)
	assert.Equal(t, "Refund request", d.Description)
	assert.Equal(t, "+10000000000", d.Phone)
	assert.Equal(t, chatID, d.ChatID)
	assert.Equal(t, "alice", d.Username)

	s, _ := h.m.Session(chatID)
	assert.Empty(t, s.MailTheme)
	assert.Empty(t, s.ProblemDescription)
}

func TestAppealUsesDisplayNameWithoutHandle(t *testing.T) {
	h := newHarness(t)
	h.dir.phones[chatID] = "+10000000000"

	anon := func(ev Event) Event {
		ev.Username = ""
		ev.DisplayName = "Alice Smith"
		return ev
	}
	require.NoError(t, h.handle(t, anon(text(LabelContactUs))))
	require.NoError(t, h.handle(t, anon(callback(CallbackTheme, "0", 0))))
	require.NoError(t, h.handle(t, anon(text("No handle here"))))
	require.NoError(t, h.handle(t, anon(callback(CallbackApprove, "", 0))))

	require.Len(t, h.appeals.drafts, 1)
	assert.Equal(t, "Alice Smith", h.appeals.drafts[0].Username)
}

func TestAppealFlowAsksForPhone(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text(LabelContactUs)))
	require.NoError(t, h.handle(t, callback(CallbackTheme, "2", 0)))
	require.NoError(t, h.handle(t, text("It is broken")))
	require.NoError(t, h.handle(t, callback(CallbackApprove, "", 0)))

	assert.Equal(t, SendPhoneToAdmin, h.state(t))
	assert.Empty(t, h.appeals.drafts)

	require.NoError(t, h.handle(t, contact("+1999")))
	assert.Equal(t, MainMenu, h.state(t))
	assert.Equal(t, "+1999", h.dir.phones[chatID])
	require.Len(t, h.appeals.drafts, 1)
	assert.Equal(t, "Other", h.appeals.drafts[0].Theme)
	assert.Equal(t, "+1999", h.appeals.drafts[0].Phone)
	assert.Contains(t, h.chat.last().msg.Text, "appeal has been sent")
}

func TestDeclineClearsDraft(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text(LabelContactUs)))
	require.NoError(t, h.handle(t, callback(CallbackTheme, "0", 0)))
	require.NoError(t, h.handle(t, text("nope")))
	require.NoError(t, h.handle(t, callback(CallbackDecline, "", 900)))

	assert.Equal(t, MainMenu, h.state(t))
	assert.Empty(t, h.appeals.drafts)
	s, _ := h.m.Session(chatID)
	assert.Empty(t, s.MailTheme)
	assert.Equal(t, chatOp{kind: "delete", messageID: 900}, h.chat.ops[len(h.chat.ops)-2])
}

func TestDescriptionIsEscapedInPreview(t *testing.T) {
	h := newHarness(t)
	h.setState(WriteToAdmin)
	require.NoError(t, h.handle(t, text("<script>&")))
	assert.Contains(t, h.chat.last().msg.Text, "&lt;script&gt;&amp;")
	s, _ := h.m.Session(chatID)
	assert.Equal(t, "<script>&", s.ProblemDescription)
}

func TestUnmatchedEventsAreIgnored(t *testing.T) {
	cases := []struct {
		name string
		from State
		ev   Event
	}{
		{"callback while writing", WriteToAdmin, callback(CallbackApprove, "", 1)},
		{"text while choosing theme", ChooseTheme, text("Billing")},
		{"bad theme index", ChooseTheme, callback(CallbackTheme, "9", 1)},
		{"non numeric theme", ChooseTheme, callback(CallbackTheme, "Billing", 1)},
		{"text while approving", ApproveAppeal, text("yes")},
		{"text in user choice", UserChoice, text("+1555")},
		{"text in send phone", SendPhoneToAdmin, text(LabelSharePhone)},
		{"other text when authorized", AuthorizeUser, text("hello")},
		{"callback in main menu", MainMenu, callback(CallbackApprove, "", 1)},
		{"contact in main menu", MainMenu, contact("+1")},
		{"description state", Description, text("anything")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.setState(tc.from)
			err := h.handle(t, tc.ev)
			assert.ErrorIs(t, err, ErrNoTransition)
			assert.Equal(t, tc.from, h.state(t))
			assert.Empty(t, h.chat.ops)
			assert.Empty(t, h.links.calls)
			assert.Empty(t, h.appeals.drafts)
		})
	}
}

func TestTransportFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.chat.failOn = "edit"
	require.NoError(t, h.handle(t, text(LabelContactUs)))
	err := h.handle(t, callback(CallbackTheme, "0", 0))
	require.Error(t, err)
	assert.Equal(t, ChooseTheme, h.state(t))
}

func TestDirectoryFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.dir.err = errors.New("disk full")
	err := h.handle(t, text(LabelLogin))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, MainMenu, h.state(t))
}

func TestChatsAreIndependent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.handle(t, text(LabelLogin)))
	require.NoError(t, h.m.Handle(context.Background(), &fakeChat{}, Event{Kind: EventText, ChatID: 7, Text: LabelContactUs}))

	assert.Equal(t, UserChoice, h.state(t))
	other, ok := h.m.Session(7)
	require.True(t, ok)
	assert.Equal(t, ChooseTheme, other.State)
}

func TestConcurrentEventsSameChat(t *testing.T) {
	h := newHarness(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.handle(t, text("noise"))
		}()
	}
	wg.Wait()
	assert.Equal(t, MainMenu, h.state(t))
	for _, op := range h.chat.ops {
		assert.True(t, strings.Contains(op.msg.Text, "did not understand"))
	}
	assert.Len(t, h.chat.ops, 20)
}
