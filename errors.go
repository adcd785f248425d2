package feedbackAuth

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email, a wrong
	// password or a deactivated account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyRegistered is returned when the email or username is taken.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrUnauthenticated is returned by Authenticate for a missing, expired or
	// malformed access token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrExpiredOrInvalidToken is returned by Refresh for a malformed,
	// expired, revoked or reused refresh token.
	ErrExpiredOrInvalidToken = errors.New("expired or invalid token")
	// ErrForbidden is returned when the identity's role is insufficient.
	ErrForbidden = errors.New("access denied")
	// ErrValidation is wrapped by *ValidationError.
	ErrValidation = errors.New("validation failed")
	ErrUserNotFound            = errors.New("user not found")
	ErrLoginRateLimited        = errors.New("login rate limited")
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrSelfModification is returned when an admin tries to demote or
	// deactivate their own account.
	ErrSelfModification = errors.New("cannot modify own account this way")
	// ErrStoreUnavailable wraps credential-store and Redis failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRegisteredNoSession is returned by Register when the account was
	// stored but no session could be issued. It also matches
	// ErrStoreUnavailable; the caller should log in rather than register
	// again.
	ErrRegisteredNoSession = errors.New("account created but no session issued")
	ErrEngineNotReady   = errors.New("engine not initialized")
)

// ValidationError carries per-field messages. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an error with a single field message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add appends message to field.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// HasErrors reports whether any field message was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	if !v.HasErrors() {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(v.Fields[name], "; "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (v *ValidationError) Unwrap() error {
	return ErrValidation
}
