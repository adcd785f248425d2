package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/feedbackAuth/internal"
	"github.com/MrEthical07/feedbackAuth/session"
)

// LogoutResult reports which session, if any, was revoked.
type LogoutResult struct {
	SessionID string
	UserID    string
	Revoked   bool
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Sessions SessionStore
}

// RunLogout revokes the session named by refreshToken. Malformed, unknown
// and already-revoked tokens are not errors. A token whose secret no
// longer matches the session is ignored so a leaked stale token cannot end
// the live session.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) (LogoutResult, error) {
	presented, err := internal.ParseRefreshToken(refreshToken)
	if err != nil {
		return LogoutResult{}, nil
	}
	sid := presented.SessionID.String()

	sess, err := deps.Sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrSessionCorrupt) {
			return LogoutResult{SessionID: sid}, nil
		}
		return LogoutResult{SessionID: sid}, err
	}
	if !presented.Secret.MatchesHash(sess.RefreshHash) {
		return LogoutResult{SessionID: sid, UserID: sess.UserID}, nil
	}

	if err := deps.Sessions.Delete(ctx, sid); err != nil {
		return LogoutResult{SessionID: sid, UserID: sess.UserID}, err
	}
	return LogoutResult{SessionID: sid, UserID: sess.UserID, Revoked: true}, nil
}

// RunLogoutAll revokes every session of userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	return deps.Sessions.DeleteAllForUser(ctx, userID)
}
