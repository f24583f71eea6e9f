// Package accesslink asks the website backend for a one-time login or registration link.
package accesslink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/sitebot/core/logger"
	"github.com/m3rciful/sitebot/core/netutil"
)

const (
	component       = "accesslink"
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

var (
	// ErrMissingGuestURL is returned when the guest link response has no url.
	ErrMissingGuestURL = errors.New("accesslink: guest link response has no url")
	// ErrMissingRegisterURL is returned when neither login nor register link came back.
	ErrMissingRegisterURL = errors.New("accesslink: response has neither login nor register link")
)

// StatusError reports a non-2xx answer from one of the endpoints.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("accesslink: %s: unexpected status %d", e.Op, e.StatusCode)
}

// Code exposes a stable error code for handler logs.
func (e *StatusError) Code() string {
	return "HTTP_" + strconv.Itoa(e.StatusCode)
}

// Result is either LoggedIn or NeedsRegistration.
type Result interface {
	isResult()
}

// LoggedIn carries a login link for a phone that already has an account.
type LoggedIn struct {
	LoginURL string
}

// NeedsRegistration carries a registration link plus a guest link.
type NeedsRegistration struct {
	RegisterURL string
	GuestURL    string
}

func (LoggedIn) isResult()          {}
func (NeedsRegistration) isResult() {}

// Options configures a Client.
type Options struct {
	APIURL       string
	GuestLinkURL string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client talks to the website backend.
type Client struct {
	apiURL   string
	guestURL string
	http     *http.Client
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIURL) == "" {
		return nil, errors.New("accesslink: api url is required")
	}
	if strings.TrimSpace(opts.GuestLinkURL) == "" {
		return nil, errors.New("accesslink: guest link url is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = netutil.BuildHTTPClient(netutil.ClientOptions{Timeout: timeout})
	}
	return &Client{apiURL: opts.APIURL, guestURL: opts.GuestLinkURL, http: hc}, nil
}

type linkResponse struct {
	Login    string `json:"login"`
	Register string `json:"register"`
}

type guestResponse struct {
	URL string `json:"url"`
}

// RequestAccessLink posts the phone to the backend and, when no login link
// comes back, fetches a guest link as a second step.
func (c *Client) RequestAccessLink(ctx context.Context, phone string, chatID int64, displayName string) (Result, error) {
	links, err := c.requestLinks(ctx, phone, chatID, displayName)
	if err != nil {
		return nil, err
	}
	if links.Login != "" {
		return LoggedIn{LoginURL: links.Login}, nil
	}
	if links.Register == "" {
		return nil, ErrMissingRegisterURL
	}
	guest, err := c.requestGuestLink(ctx)
	if err != nil {
		return nil, err
	}
	return NeedsRegistration{RegisterURL: links.Register, GuestURL: guest}, nil
}

func (c *Client) requestLinks(ctx context.Context, phone string, chatID int64, displayName string) (linkResponse, error) {
	form := url.Values{
		"phone":    {phone},
		"chat_id":  {strconv.FormatInt(chatID, 10)},
		"username": {displayName},
	}
	start := time.Now()
	var out linkResponse
	err := c.do(ctx, "link request", http.MethodPost, c.apiURL, strings.NewReader(form.Encode()), &out)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("phone", logger.MaskPhone(phone)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, component, "link.request", attrs...)
		return out, err
	}
	result := "register"
	if out.Login != "" {
		result = "login"
	}
	logger.Info(ctx, component, "link.request", append(attrs, slog.String("result", result))...)
	return out, nil
}

func (c *Client) requestGuestLink(ctx context.Context) (string, error) {
	start := time.Now()
	var out guestResponse
	err := c.do(ctx, "guest link", http.MethodGet, c.guestURL, nil, &out)
	if err == nil && strings.TrimSpace(out.URL) == "" {
		err = ErrMissingGuestURL
	}
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Error(ctx, component, "link.guest", append(attrs, slog.String("err", err.Error()))...)
		return "", err
	}
	logger.Info(ctx, component, "link.guest", attrs...)
	return out.URL, nil
}

func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("accesslink: %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("accesslink: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(dst); err != nil {
		return fmt.Errorf("accesslink: %s: decode response: %w", op, err)
	}
	return nil
}
