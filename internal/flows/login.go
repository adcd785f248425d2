package flows

import (
	"context"
	"errors"
	"strings"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLookup
	LoginFailureInvalidCredentials
	LoginFailureInactive
	LoginFailureIssue
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Email    string
	Password string
	IP       string
}

// LoginResult carries the issued tokens or a classified failure.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Principal Principal
	Tokens    *Tokens
}

// LoginRateLimiter is implemented by rate.Limiter.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	RecordLoginFailure(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	RateLimiter    LoginRateLimiter
	FindByEmail    func(ctx context.Context, email string) (Principal, error)
	UserNotFound   error
	VerifyPassword func(password, hash string) (bool, error)
	// DummyHash is verified against when the email is unknown so both
	// outcomes cost one password hash.
	DummyHash      string
	TouchLastLogin func(ctx context.Context, userID string) error
	Warn           func(string, ...any)
}

// RunLogin checks credentials and opens a session.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps, issue IssueDeps) LoginResult {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, email, req.IP); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	p, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(req.Password, deps.DummyHash)
			}
			recordFailure(ctx, deps, email, req.IP)
			return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(req.Password, p.PasswordHash)
	if err != nil || !ok {
		recordFailure(ctx, deps, email, req.IP)
		if err == nil {
			err = errors.New("password mismatch")
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err, Principal: p}
	}

	if !p.Active {
		recordFailure(ctx, deps, email, req.IP)
		return LoginResult{Failure: LoginFailureInactive, Err: errors.New("account inactive"), Principal: p}
	}

	tokens, err := IssueSession(ctx, p, issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Principal: p}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, email); err != nil {
			deps.warn("login limiter reset failed: %v", err)
		}
	}
	if deps.TouchLastLogin != nil {
		if err := deps.TouchLastLogin(ctx, p.UserID); err != nil {
			deps.warn("last login update failed: %v", err)
		}
	}

	return LoginResult{Principal: p, Tokens: tokens}
}

func recordFailure(ctx context.Context, deps LoginDeps, email, ip string) {
	if deps.RateLimiter == nil {
		return
	}
	if err := deps.RateLimiter.RecordLoginFailure(ctx, email, ip); err != nil {
		deps.warn("login limiter update failed: %v", err)
	}
}

func (d LoginDeps) warn(format string, args ...any) {
	if d.Warn != nil {
		d.Warn(format, args...)
	}
}
