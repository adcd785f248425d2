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
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrForbidden is returned for a 403; the session is kept.
	ErrForbidden = errors.New("access denied")
	// ErrNotAuthenticated is returned when a call needs tokens the session
	// does not have.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned when the refresh token was rejected. The
	// session has been cleared and the LoginNavigator invoked.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidCredentials is returned by Login for a 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionChanged is returned by Me when the session signed out or
	// switched users while the profile was being fetched.
	ErrSessionChanged = errors.New("session changed during request")
)

// refreshTimeout bounds a shared refresh, which outlives the call that
// started it.
const refreshTimeout = 15 * time.Second

// APIError is any other non-2xx answer.
type APIError struct {
	Status int
	Detail string
	Fields map[string][]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			parts = append(parts, k+": "+strings.Join(v, "; "))
		}
		return fmt.Sprintf("api error %d: %s", e.Status, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// LoginNavigator is told when the user must sign in again.
type LoginNavigator interface {
	NavigateToLogin()
}

// LoginNavigatorFunc adapts a plain function to LoginNavigator.
type LoginNavigatorFunc func()

// NavigateToLogin calls f.
func (f LoginNavigatorFunc) NavigateToLogin() { f() }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 15s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithNavigator sets who is told when the session ends.
func WithNavigator(n LoginNavigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLogger sets the logger for best-effort failures. Logging is
// discarded by default.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// Client calls the auth API on behalf of one Session.
type Client struct {
	baseURL   string
	http      *http.Client
	session   *Session
	navigator LoginNavigator
	logger    logrus.FieldLogger
	refreshes singleflight.Group
}

// New returns a Client for the API rooted at baseURL, for example
// "http://localhost:8080/api/auth".
func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	return c
}

// Session returns the session this client acts for.
func (c *Client) Session() *Session { return c.session }

type authResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

// RegisterRequest mirrors the register endpoint body.
type RegisterRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Company         string `json:"company,omitempty"`
	JobTitle        string `json:"job_title,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Bio             string `json:"bio,omitempty"`
}

// Login signs in and loads the profile.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res authResponse
	status, err := c.send(ctx, http.MethodPost, "/login/", "", map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		if status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return c.establish(ctx, res)
}

// Register creates an account, signs in as it and loads the profile.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var res authResponse
	if _, err := c.send(ctx, http.MethodPost, "/register/", "", req, &res); err != nil {
		return nil, err
	}
	return c.establish(ctx, res)
}

func (c *Client) establish(ctx context.Context, res authResponse) (*User, error) {
	if err := c.session.replace(ctx, Tokens{Access: res.Access, Refresh: res.Refresh}, res.User); err != nil {
		return nil, err
	}
	u, err := c.Me(ctx)
	if err != nil {
		// The compact user from the auth response is still usable.
		c.logger.WithError(err).Warn("profile fetch after sign-in failed")
		return c.session.User(), nil
	}
	return u, nil
}

// Me fetches the current profile and stores it on the session. A profile
// that arrives after a logout or a sign-in as someone else is discarded.
func (c *Client) Me(ctx context.Context) (*User, error) {
	epoch := c.session.identityEpoch()
	var u User
	if err := c.Do(ctx, http.MethodGet, "/me/", nil, &u); err != nil {
		return nil, err
	}
	if !c.session.setUserIf(epoch, &u) {
		return nil, ErrSessionChanged
	}
	return c.session.User(), nil
}

// Logout revokes the refresh token server-side on a best-effort basis and
// always clears the local session.
func (c *Client) Logout(ctx context.Context) error {
	tokens := c.session.Tokens()
	if tokens.Refresh != "" {
		if _, err := c.send(ctx, http.MethodPost, "/logout/", "", map[string]string{"refresh_token": tokens.Refresh}, nil); err != nil {
			c.logger.WithError(err).Warn("server logout failed; clearing local session anyway")
		}
	}
	return c.session.Clear(ctx)
}

// Do performs an authenticated call. A 401 triggers one shared refresh and
// one retry; a second 401, or a failed refresh, ends the session.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	tokens, gen := c.session.snapshot()
	if tokens.Access == "" {
		return ErrNotAuthenticated
	}

	status, err := c.send(ctx, method, path, tokens.Access, body, out)
	if status != http.StatusUnauthorized {
		return mapStatus(status, err)
	}

	if err := c.refresh(ctx, gen); err != nil {
		return err
	}

	tokens, _ = c.session.snapshot()
	if tokens.Access == "" {
		return ErrSessionExpired
	}
	status, err = c.send(ctx, method, path, tokens.Access, body, out)
	if status == http.StatusUnauthorized {
		c.expire(ctx)
		return ErrSessionExpired
	}
	return mapStatus(status, err)
}

func mapStatus(status int, err error) error {
	if status == http.StatusForbidden {
		return ErrForbidden
	}
	return err
}

// refresh rotates the pair unless the generation that failed has already
// been superseded. The shared request runs detached from ctx so one
// caller giving up does not fail the others; ctx only bounds the wait.
func (c *Client) refresh(ctx context.Context, failedGen uint64) error {
	if c.session.Generation() != failedGen {
		return nil
	}

	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		if c.session.Generation() != failedGen {
			return nil, nil
		}
		refresh, ok := c.session.beginRefresh(failedGen)
		if !ok {
			if c.session.Generation() != failedGen {
				return nil, nil
			}
			c.expire(rctx)
			return nil, ErrSessionExpired
		}

		var res authResponse
		status, err := c.send(rctx, http.MethodPost, "/refresh/", "", map[string]string{"refresh": refresh}, &res)
		if err != nil {
			if status == http.StatusUnauthorized || status == http.StatusBadRequest {
				if c.session.Generation() == failedGen {
					c.expire(rctx)
				}
				return nil, ErrSessionExpired
			}
			// Transport trouble: keep the session for a later attempt.
			c.session.abortRefresh(failedGen)
			return nil, err
		}
		return nil, c.session.rotateIf(rctx, failedGen, Tokens{Access: res.Access, Refresh: res.Refresh})
	})

	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) expire(ctx context.Context) {
	if err := c.session.Clear(ctx); err != nil {
		c.logger.WithError(err).Warn("clear session")
	}
	if c.navigator != nil {
		c.navigator.NavigateToLogin()
	}
}

// send issues one request and decodes a 2xx body into out. It returns the
// HTTP status (0 on transport failure) along with any error.
func (c *Client) send(ctx context.Context, method, path, access string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &detail) == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
		return apiErr
	}
	var fields map[string][]string
	if json.Unmarshal(raw, &fields) == nil {
		apiErr.Fields = fields
	}
	return apiErr
}
