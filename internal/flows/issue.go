package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/feedbackAuth/internal"
	"github.com/MrEthical07/feedbackAuth/session"
)

// IssueSession opens a new refresh session for p and signs an access token
// bound to it.
func IssueSession(ctx context.Context, p Principal, deps IssueDeps) (*Tokens, error) {
	now := deps.now()

	refresh, err := deps.newRefreshToken()
	if err != nil {
		return nil, err
	}
	sid := refresh.SessionID.String()
	expiresAt := now.Add(deps.RefreshTTL)

	sess := &session.Session{
		SessionID:   sid,
		UserID:      p.UserID,
		RefreshHash: refresh.Secret.Hash(),
		CreatedAt:   now.Unix(),
		ExpiresAt:   expiresAt.Unix(),
	}
	if err := deps.Sessions.Save(ctx, sess, deps.RefreshTTL); err != nil {
		return nil, err
	}

	access, accessExp, err := deps.CreateAccess(p.UserID, p.Role, sid)
	if err != nil {
		_ = deps.Sessions.Delete(ctx, sid)
		return nil, err
	}

	return &Tokens{
		SessionID:        sid,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Encode(),
		RefreshExpiresAt: expiresAt,
	}, nil
}

func (d IssueDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d IssueDeps) newRefreshToken() (internal.RefreshToken, error) {
	if d.NewRefreshToken != nil {
		return d.NewRefreshToken()
	}
	return internal.NewRefreshToken()
}
