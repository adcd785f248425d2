package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/feedbackAuth/internal"
	"github.com/MrEthical07/feedbackAuth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureSessionInvalid
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureAccount
	RefreshFailureIssue
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	SessionID string
	UserID    string
	Tokens    *Tokens
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	// LoadUser fetches the current account so the new access token carries
	// the current role.
	LoadUser func(ctx context.Context, userID string) (Principal, error)
	// UserNotFound is the LoadUser error meaning the account is gone. Any
	// other LoadUser error is a store failure and leaves the session intact.
	UserNotFound error
}

// RunRefresh rotates the refresh secret and issues a new access token. The
// account is loaded before the secret is rotated so a store failure never
// consumes the presented token.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps, issue IssueDeps) RefreshResult {
	presented, err := internal.ParseRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	sid := presented.SessionID.String()

	sess, err := issue.Sessions.Get(ctx, sid)
	if err != nil {
		res := sessionFailure(err, sid, "")
		if errors.Is(err, session.ErrSessionExpired) {
			_ = issue.Sessions.Delete(ctx, sid)
		}
		return res
	}

	p, err := deps.LoadUser(ctx, sess.UserID)
	if err != nil && (deps.UserNotFound == nil || !errors.Is(err, deps.UserNotFound)) {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, SessionID: sid, UserID: sess.UserID}
	}
	if err == nil && !p.Active {
		err = errors.New("account inactive")
	}
	if err != nil {
		_ = issue.Sessions.Delete(ctx, sid)
		return RefreshResult{Failure: RefreshFailureAccount, Err: err, SessionID: sid, UserID: sess.UserID}
	}

	next, err := presented.Rotate()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, SessionID: sid}
	}

	userID, err := issue.Sessions.Rotate(ctx, sid, presented.Secret.Hash(), next.Secret.Hash())
	if err != nil {
		return sessionFailure(err, sid, userID)
	}
	if userID != p.UserID {
		_ = issue.Sessions.Delete(ctx, sid)
		return RefreshResult{Failure: RefreshFailureSessionInvalid, Err: session.ErrSessionCorrupt, SessionID: sid, UserID: userID}
	}

	access, accessExp, err := issue.CreateAccess(p.UserID, p.Role, sid)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, SessionID: sid, UserID: userID}
	}

	return RefreshResult{
		SessionID: sid,
		UserID:    userID,
		Tokens: &Tokens{
			SessionID:        sid,
			AccessToken:      access,
			AccessExpiresAt:  accessExp,
			RefreshToken:     next.Encode(),
			RefreshExpiresAt: issue.now().Add(issue.RefreshTTL),
		},
	}
}

func sessionFailure(err error, sid, userID string) RefreshResult {
	res := RefreshResult{Err: err, SessionID: sid, UserID: userID}
	switch {
	case errors.Is(err, session.ErrRefreshHashMismatch):
		res.Failure = RefreshFailureReuse
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrSessionCorrupt):
		res.Failure = RefreshFailureSessionInvalid
	default:
		res.Failure = RefreshFailureStore
	}
	return res
}
