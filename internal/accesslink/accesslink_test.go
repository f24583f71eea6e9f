package accesslink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	linkStatus  int
	linkBody    string
	guestStatus int
	guestBody   string

	linkCalls  atomic.Int32
	guestCalls atomic.Int32
	lastForm   chan map[string]string
}

func (b *backend) start(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	b.lastForm = make(chan map[string]string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/link", func(w http.ResponseWriter, r *http.Request) {
		b.linkCalls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		select {
		case b.lastForm <- map[string]string{
			"phone":    r.PostForm.Get("phone"),
			"chat_id":  r.PostForm.Get("chat_id"),
			"username": r.PostForm.Get("username"),
		}:
		default:
		}
		w.WriteHeader(b.linkStatus)
		_, _ = w.Write([]byte(b.linkBody))
	})
	mux.HandleFunc("/api/guest", func(w http.ResponseWriter, r *http.Request) {
		b.guestCalls.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(b.guestStatus)
		_, _ = w.Write([]byte(b.guestBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Options{APIURL: srv.URL + "/api/link", GuestLinkURL: srv.URL + "/api/guest"})
	require.NoError(t, err)
	return c, srv
}

func TestRequestAccessLinkLoggedIn(t *testing.T) {
	b := &backend{linkStatus: http.StatusOK, linkBody: `{"login":"https://site/login/abc"}`}
	c, _ := b.start(t)

	res, err := c.RequestAccessLink(context.Background(), "+1555", 42, "@alice")
	require.NoError(t, err)
	assert.Equal(t, LoggedIn{LoginURL: "https://site/login/abc"}, res)
	assert.EqualValues(t, 1, b.linkCalls.Load())
	assert.Zero(t, b.guestCalls.Load())

	form := <-b.lastForm
	assert.Equal(t, "+1555", form["phone"])
	assert.Equal(t, "42", form["chat_id"])
	assert.Equal(t, "@alice", form["username"])
}

func TestRequestAccessLinkNeedsRegistration(t *testing.T) {
	b := &backend{
		linkStatus:  http.StatusOK,
		linkBody:    `{"register":"https://site/register/x"}`,
		guestStatus: http.StatusOK,
		guestBody:   `{"url":"https://site/guest/y"}`,
	}
	c, _ := b.start(t)

	res, err := c.RequestAccessLink(context.Background(), "+1555", 42, "Alice")
	require.NoError(t, err)
	assert.Equal(t, NeedsRegistration{RegisterURL: "https://site/register/x", GuestURL: "https://site/guest/y"}, res)
	assert.EqualValues(t, 1, b.guestCalls.Load())
}

func TestRequestAccessLinkEmptyLoginFallsThrough(t *testing.T) {
	b := &backend{
		linkStatus:  http.StatusOK,
		linkBody:    `{"login":"","register":"https://site/register/x"}`,
		guestStatus: http.StatusOK,
		guestBody:   `{"url":"https://site/guest/y"}`,
	}
	c, _ := b.start(t)

	res, err := c.RequestAccessLink(context.Background(), "+1555", 1, "x")
	require.NoError(t, err)
	assert.IsType(t, NeedsRegistration{}, res)
	assert.EqualValues(t, 1, b.guestCalls.Load())
}

func TestRequestAccessLinkErrors(t *testing.T) {
	cases := []struct {
		name      string
		b         *backend
		check     func(t *testing.T, err error)
		wantGuest int32
	}{
		{
			name: "link status",
			b:    &backend{linkStatus: http.StatusBadGateway, linkBody: `oops`},
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusBadGateway, se.StatusCode)
				assert.Equal(t, "HTTP_502", se.Code())
			},
		},
		{
			name: "malformed json",
			b:    &backend{linkStatus: http.StatusOK, linkBody: `{"login":`},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode response")
			},
		},
		{
			// Neither link came back: fail before the guest call, a register
			// button without a URL cannot be rendered.
			name: "missing register",
			b:    &backend{linkStatus: http.StatusOK, linkBody: `{}`},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingRegisterURL)
			},
		},
		{
			name: "guest status",
			b: &backend{
				linkStatus: http.StatusOK, linkBody: `{"register":"r"}`,
				guestStatus: http.StatusInternalServerError, guestBody: `{}`,
			},
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "guest link", se.Op)
			},
			wantGuest: 1,
		},
		{
			name: "guest without url",
			b: &backend{
				linkStatus: http.StatusOK, linkBody: `{"register":"r"}`,
				guestStatus: http.StatusOK, guestBody: `{"link":"nope"}`,
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingGuestURL)
			},
			wantGuest: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := tc.b.start(t)
			res, err := c.RequestAccessLink(context.Background(), "+1", 1, "u")
			require.Error(t, err)
			assert.Nil(t, res)
			tc.check(t, err)
			assert.Equal(t, tc.wantGuest, tc.b.guestCalls.Load())
		})
	}
}

func TestNewValidatesURLs(t *testing.T) {
	_, err := New(Options{GuestLinkURL: "http://x"})
	assert.Error(t, err)
	_, err = New(Options{APIURL: "http://x"})
	assert.Error(t, err)
}
