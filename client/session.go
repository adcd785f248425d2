package client

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Tokens is the pair held by a Session.
type Tokens struct {
	Access  string
	Refresh string
}

func (t Tokens) empty() bool {
	return t.Access == "" && t.Refresh == ""
}

// User is the account as returned by /me/.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	FullName           string     `json:"full_name"`
	Role               string     `json:"role"`
	Bio                string     `json:"bio"`
	PhoneNumber        string     `json:"phone_number"`
	Company            string     `json:"company"`
	JobTitle           string     `json:"job_title"`
	IsEmailVerified    bool       `json:"is_email_verified"`
	EmailNotifications bool       `json:"email_notifications"`
	LastLogin          *time.Time `json:"last_login"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Session is the client's single authenticated identity. Tokens and user
// are always replaced together; every replacement bumps the generation.
// The epoch changes only when the identity itself changes (sign-in or
// clear), so a refresh does not invalidate an in-flight profile fetch.
type Session struct {
	mu         sync.RWMutex
	tokens     Tokens
	user       *User
	state      State
	generation uint64
	epoch      uint64
	store      TokenStore
}

// NewSession restores persisted tokens from store. A nil store keeps
// tokens in memory only.
func NewSession(ctx context.Context, store TokenStore) (*Session, error) {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	s := &Session{store: store}

	tokens, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.Access != "" && tokens.Refresh != "" {
		s.tokens = tokens
		s.state = StateAuthenticated
	}
	return s, nil
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns a copy of the current user, or nil when anonymous or not
// yet fetched.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Tokens returns the current pair; both fields are empty when anonymous.
func (s *Session) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *Session) snapshot() (Tokens, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, s.generation
}

// Generation increases on every token change.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// replace installs a new pair and user and persists the pair.
func (s *Session) replace(ctx context.Context, tokens Tokens, user *User) error {
	s.mu.Lock()
	s.tokens = tokens
	s.user = user
	s.state = StateAuthenticated
	s.generation++
	s.epoch++
	s.mu.Unlock()

	return s.store.Save(ctx, tokens)
}

// beginRefresh marks the session as refreshing when gen is still current
// and returns the refresh token to present.
func (s *Session) beginRefresh(gen uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.tokens.Refresh == "" {
		return "", false
	}
	s.state = StateRefreshing
	return s.tokens.Refresh, true
}

// rotateIf installs a refreshed pair, keeping the user, unless the session
// moved on (logout or a new sign-in) while the refresh was in flight.
func (s *Session) rotateIf(ctx context.Context, gen uint64, tokens Tokens) error {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	s.tokens = tokens
	s.state = StateAuthenticated
	s.generation++
	s.mu.Unlock()

	return s.store.Save(ctx, tokens)
}

// abortRefresh returns a refreshing session to authenticated.
func (s *Session) abortRefresh(gen uint64) {
	s.mu.Lock()
	if s.generation == gen && s.state == StateRefreshing {
		s.state = StateAuthenticated
	}
	s.mu.Unlock()
}

func (s *Session) identityEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// setUserIf stores u only while the identity that requested it is still
// signed in.
func (s *Session) setUserIf(epoch uint64, u *User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state == StateAnonymous {
		return false
	}
	s.user = u
	return true
}

// Clear drops tokens and user locally and in the store.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.tokens = Tokens{}
	s.user = nil
	s.state = StateAnonymous
	s.generation++
	s.epoch++
	s.mu.Unlock()

	return s.store.Clear(ctx)
}

// Close releases the token store. The session must not be used afterwards.
func (s *Session) Close() error {
	return s.store.Close()
}
