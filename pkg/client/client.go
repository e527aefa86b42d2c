// Package client is a Go SDK for the support-desk API that keeps the session
// alive: it attaches the access token, refreshes it once on 401 and retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the session state of a Client.
type State int

const (
	NoSession State = iota
	Active
	Refreshing
	LoggedOut
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "NoSession"
	case Active:
		return "Active"
	case Refreshing:
		return "Refreshing"
	case LoggedOut:
		return "LoggedOut"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrSessionExpired means the refresh exchange failed and the session was cleared.
	ErrSessionExpired = errors.New("client: session expired")
	// ErrRoleMismatch means the server's role for the account differs from the requested one.
	ErrRoleMismatch = errors.New("client: role mismatch")
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	store    TokenStore
	listener func(State)

	mu      sync.Mutex
	state   State
	session Session
	// epoch changes on every Login and Logout; a refresh started under an
	// older epoch must not touch the session.
	epoch uint64

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore persists the session. Defaults to a MemoryStore.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithStateListener is called after every state transition, outside the client lock.
func WithStateListener(fn func(State)) Option {
	return func(c *Client) { c.listener = fn }
}

// New builds a client and restores any stored session.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   NewMemoryStore(),
		state:   NoSession,
	}
	for _, opt := range opts {
		opt(c)
	}
	session, ok, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if ok && (session.AccessToken != "" || session.RefreshToken != "") {
		c.session = session
		c.state = Active
	}
	return c, nil
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current tokens.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LoginUser is the identity block returned by login.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	User         LoginUser `json:"user"`
}

// Login exchanges credentials for a token pair and moves to Active.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	session := Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		UserID:       out.User.ID,
		Email:        out.User.Email,
		Role:         out.User.Role,
	}
	c.mu.Lock()
	c.epoch++
	err := c.store.Save(session)
	var changed bool
	if err == nil {
		c.session = session
		changed = c.setState(Active)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.notify(changed, Active)
	return &out, nil
}

// LoginAs logs in and then checks the server-issued role against role.
// On mismatch the new session is discarded.
func (c *Client) LoginAs(ctx context.Context, email, password, role string) (*LoginResponse, error) {
	res, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if role != "" && !strings.EqualFold(res.User.Role, role) {
		c.Logout()
		return nil, fmt.Errorf("%w: account role is %q", ErrRoleMismatch, res.User.Role)
	}
	return res, nil
}

// Logout clears stored tokens and moves to LoggedOut. It also voids any refresh in flight.
func (c *Client) Logout() {
	c.mu.Lock()
	c.epoch++
	changed := c.clearLocked()
	c.mu.Unlock()
	c.notify(changed, LoggedOut)
}

// logoutIfCurrent logs out only when no Login or Logout happened since epoch.
func (c *Client) logoutIfCurrent(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	changed := c.clearLocked()
	c.mu.Unlock()
	c.notify(changed, LoggedOut)
}

func (c *Client) clearLocked() bool {
	_ = c.store.Clear()
	c.session = Session{}
	return c.setState(LoggedOut)
}

// Do sends an authenticated request and decodes a 2xx body into out.
// A 401 triggers one refresh and one retry; a second 401 is returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	session := c.Session()
	token := session.AccessToken
	if token == "" && session.RefreshToken != "" {
		// restored with only a refresh token: exchange it up front and skip the retry
		fresh, err := c.refresh(ctx, "")
		if err != nil {
			return err
		}
		return c.send(ctx, method, path, fresh, body, out)
	}

	err := c.send(ctx, method, path, token, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || token == "" {
		return err
	}

	fresh, rerr := c.refresh(ctx, token)
	if rerr != nil {
		return rerr
	}
	return c.send(ctx, method, path, fresh, body, out)
}

// refresh exchanges the refresh token once for every caller that saw stale fail.
// The result is dropped if a Login or Logout happened while the exchange was in flight.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		c.mu.Lock()
		if c.state == Active && c.session.AccessToken != stale && c.session.AccessToken != "" {
			current := c.session.AccessToken
			c.mu.Unlock()
			return current, nil
		}
		epoch := c.epoch
		refreshToken := c.session.RefreshToken
		if refreshToken == "" {
			c.mu.Unlock()
			c.logoutIfCurrent(epoch)
			return nil, ErrSessionExpired
		}
		changed := c.setState(Refreshing)
		c.mu.Unlock()
		c.notify(changed, Refreshing)

		var out struct {
			AccessToken string `json:"accessToken"`
		}
		err := c.send(context.WithoutCancel(ctx), http.MethodPost, "/api/auth/refresh", "",
			map[string]string{"refreshToken": refreshToken}, &out)
		if err != nil || out.AccessToken == "" {
			c.logoutIfCurrent(epoch)
			return nil, ErrSessionExpired
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return nil, ErrSessionExpired
		}
		session := c.session
		session.AccessToken = out.AccessToken
		if err := c.store.Save(session); err != nil {
			c.mu.Unlock()
			c.logoutIfCurrent(epoch)
			return nil, fmt.Errorf("save session: %w", err)
		}
		c.session = session
		changed = c.setState(Active)
		c.mu.Unlock()
		c.notify(changed, Active)
		return out.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// setState must be called with c.mu held. It reports whether the state changed.
func (c *Client) setState(state State) bool {
	changed := c.state != state
	c.state = state
	return changed
}

// notify runs the listener outside the lock.
func (c *Client) notify(changed bool, state State) {
	if changed && c.listener != nil {
		c.listener(state)
	}
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(raw) > 0 && json.Unmarshal(raw, apiErr) == nil && apiErr.Message != "" {
			return apiErr
		}
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
