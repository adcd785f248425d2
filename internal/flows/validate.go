package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/feedbackAuth/jwt"
	"github.com/MrEthical07/feedbackAuth/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissing
	ValidateFailureExpired
	ValidateFailureInvalid
	ValidateFailureSessionRevoked
	ValidateFailureStore
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// ValidateDeps captures validation dependencies. Sessions is consulted only
// when Strict is set; otherwise validation is purely cryptographic.
type ValidateDeps struct {
	ParseAccess ParseAccessFunc
	Strict      bool
	Sessions    SessionStore
}

// RunValidate verifies an access token.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	if token == "" {
		return ValidateResult{Failure: ValidateFailureMissing, Err: errors.New("missing token")}
	}

	claims, err := deps.ParseAccess(token)
	if err != nil {
		if jwt.IsExpired(err) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}

	if deps.Strict && deps.Sessions != nil {
		sess, err := deps.Sessions.Get(ctx, claims.SID)
		switch {
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
			return ValidateResult{Failure: ValidateFailureSessionRevoked, Err: err, Claims: claims}
		case err != nil:
			return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
		case sess.UserID != claims.UID:
			return ValidateResult{Failure: ValidateFailureInvalid, Err: errors.New("session owner mismatch"), Claims: claims}
		}
	}

	return ValidateResult{Claims: claims}
}
