package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/feedbackAuth/internal"
	"github.com/MrEthical07/feedbackAuth/jwt"
	"github.com/MrEthical07/feedbackAuth/session"
)

// Principal is the flow-local view of a user account.
type Principal struct {
	UserID       string
	Email        string
	Role         string
	PasswordHash string
	Active       bool
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionStore is the subset of session.Store the flows use.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Rotate(ctx context.Context, sessionID, presentedHash, nextHash string) (string, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// IssueDeps is shared by every flow that mints a token pair.
type IssueDeps struct {
	Sessions        SessionStore
	RefreshTTL      time.Duration
	CreateAccess    func(uid, role, sid string) (string, time.Time, error)
	NewRefreshToken func() (internal.RefreshToken, error)
	Now             func() time.Time
}

// Deps groups flow dependency sets. The engine builds this once.
type Deps struct {
	Issue    IssueDeps
	Login    LoginDeps
	Register RegisterDeps
	Refresh  RefreshDeps
	Validate ValidateDeps
	Logout   LogoutDeps
}

// ParseAccessFunc matches jwt.Manager.ParseAccess.
type ParseAccessFunc func(string) (*jwt.AccessClaims, error)
