package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/m3rciful/sitebot/internal/accesslink"
	"github.com/m3rciful/sitebot/internal/appeal"
)

type chatOp struct {
	kind      string
	messageID int
	msg       Message
}

type fakeChat struct {
	mu     sync.Mutex
	nextID int
	ops    []chatOp
	failOn string
}

func (c *fakeChat) record(op chatOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn == op.kind {
		return errors.New("transport: " + op.kind + " failed")
	}
	c.ops = append(c.ops, op)
	return nil
}

func (c *fakeChat) Send(_ context.Context, msg Message) (int, error) {
	c.mu.Lock()
	c.nextID++
	id := 100 + c.nextID
	c.mu.Unlock()
	if err := c.record(chatOp{kind: "send", messageID: id, msg: msg}); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *fakeChat) Edit(_ context.Context, messageID int, msg Message) error {
	return c.record(chatOp{kind: "edit", messageID: messageID, msg: msg})
}

func (c *fakeChat) Delete(_ context.Context, messageID int) error {
	return c.record(chatOp{kind: "delete", messageID: messageID})
}

func (c *fakeChat) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ops))
	for _, op := range c.ops {
		out = append(out, op.kind)
	}
	return out
}

func (c *fakeChat) last() chatOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops[len(c.ops)-1]
}

type fakeDirectory struct {
	mu      sync.Mutex
	phones  map[int64]string
	inserts int
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{phones: map[int64]string{}}
}

func (d *fakeDirectory) Lookup(_ context.Context, chatID int64) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", false, d.err
	}
	p, ok := d.phones[chatID]
	return p, ok, nil
}

func (d *fakeDirectory) Insert(_ context.Context, chatID int64, phone string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.inserts++
	if _, ok := d.phones[chatID]; !ok {
		d.phones[chatID] = phone
	}
	return nil
}

type linkCall struct {
	phone       string
	chatID      int64
	displayName string
}

type fakeLinks struct {
	mu     sync.Mutex
	calls  []linkCall
	result accesslink.Result
	err    error
}

func (l *fakeLinks) RequestAccessLink(_ context.Context, phone string, chatID int64, displayName string) (accesslink.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, linkCall{phone: phone, chatID: chatID, displayName: displayName})
	if l.err != nil {
		return nil, l.err
	}
	return l.result, nil
}

type fakeAppeals struct {
	mu     sync.Mutex
	drafts []appeal.Draft
	err    error
}

func (a *fakeAppeals) ComposeAndSend(_ context.Context, d appeal.Draft) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.drafts = append(a.drafts, d)
	return nil
}
