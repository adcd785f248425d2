package feedbackAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/feedbackAuth/internal/audit"
	"github.com/MrEthical07/feedbackAuth/internal/flows"
	"github.com/MrEthical07/feedbackAuth/internal/rate"
	"github.com/MrEthical07/feedbackAuth/jwt"
	"github.com/MrEthical07/feedbackAuth/password"
	"github.com/MrEthical07/feedbackAuth/permission"
	"github.com/MrEthical07/feedbackAuth/session"
)

// Engine runs account and session operations. It is immutable after Build
// and safe for concurrent use.
type Engine struct {
	config     Config
	users      UserStore
	sessions   *session.Store
	limiter    *rate.Limiter
	jwtManager *jwt.Manager
	hasher     *password.Argon2
	policy     password.Policy
	validate   *validator.Validate
	logger     logrus.FieldLogger
	metrics    MetricsSink
	audit      *audit.Dispatcher
	flows      flows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events lost to a full buffer or to an
// expired drain in Close.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedCritical reports the security-relevant subset of AuditDropped.
func (e *Engine) AuditDroppedCritical() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.DroppedCritical()
}

// Ping checks Redis and the credential store.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.users.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Register creates a contributor account and logs it in.
//
// Input problems, including password policy failures, are reported as a
// *ValidationError. A taken email or username yields ErrAlreadyRegistered.
// The account is stored before its session is issued; if issuing fails the
// account remains and ErrRegisteredNoSession is returned.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	verr := checkStruct(e.validate, &req)
	if verr == nil {
		verr = &ValidationError{}
	}
	e.checkPassword(verr, "password", "password_confirm", req.Password, req.PasswordConfirm,
		req.Email, req.Username, req.FirstName, req.LastName)
	if verr.HasErrors() {
		return nil, verr
	}

	var created *UserRecord
	res := e.flows.Register(ctx, flows.RegisterRequest{
		Password: req.Password,
		IP:       clientIPFromContext(ctx),
		Create: func(ctx context.Context, hash string) (flows.Principal, error) {
			now := time.Now().UTC()
			u := &UserRecord{
				ID:                 uuid.NewString(),
				Email:              req.Email,
				Username:           req.Username,
				FirstName:          req.FirstName,
				LastName:           req.LastName,
				Role:               e.config.DefaultRole,
				IsActive:           true,
				EmailNotifications: true,
				Bio:                req.Bio,
				PhoneNumber:        req.PhoneNumber,
				Company:            strings.TrimSpace(req.Company),
				JobTitle:           strings.TrimSpace(req.JobTitle),
				PasswordHash:       hash,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := e.users.Create(ctx, u); err != nil {
				return flows.Principal{}, err
			}
			created = u
			return principalOf(u), nil
		},
	})

	switch res.Failure {
	case flows.RegisterFailureNone:
	case flows.RegisterFailureRateLimited:
		e.emit(ctx, audit.Event{Type: audit.EventRegister, Error: "rate_limited", Metadata: map[string]string{"email": req.Email}})
		return nil, ErrRegistrationRateLimited
	case flows.RegisterFailureHash:
		if errors.Is(res.Err, password.ErrPasswordTooLong) {
			return nil, NewValidationError("password", "password is too long")
		}
		return nil, res.Err
	case flows.RegisterFailureCreate:
		if errors.Is(res.Err, ErrAlreadyRegistered) {
			e.emit(ctx, audit.Event{Type: audit.EventRegister, Error: "duplicate", Metadata: map[string]string{"email": req.Email}})
		}
		return nil, storeError(res.Err)
	case flows.RegisterFailureIssue:
		// The account is persisted; a retry would only hit ErrAlreadyRegistered.
		e.emit(ctx, audit.Event{Type: audit.EventRegister, UserID: res.Principal.UserID, Error: "session_issue"})
		e.logger.WithField("user_id", res.Principal.UserID).Warnf("registered without a session: %v", res.Err)
		return nil, fmt.Errorf("%w: %w", ErrRegisteredNoSession, storeError(res.Err))
	default:
		return nil, storeError(res.Err)
	}

	e.emit(ctx, audit.Event{Type: audit.EventRegister, UserID: created.ID, SessionID: res.Tokens.SessionID, Success: true})
	return &AuthResult{TokenPair: pairOf(res.Tokens), User: created.Clone()}, nil
}

// Login authenticates by email and password. Unknown emails, wrong
// passwords and deactivated accounts all yield ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, pw string) (*AuthResult, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)

	res := e.flows.Login(ctx, flows.LoginRequest{
		Email:    email,
		Password: pw,
		IP:       clientIPFromContext(ctx),
	})

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.emit(ctx, audit.Event{Type: audit.EventLoginThrottled, Metadata: map[string]string{"email": email}})
		if errors.Is(res.Err, rate.ErrRedisUnavailable) {
			return nil, storeError(res.Err)
		}
		return nil, ErrLoginRateLimited
	case flows.LoginFailureInvalidCredentials, flows.LoginFailureInactive:
		e.emit(ctx, audit.Event{
			Type:     audit.EventLoginFailure,
			UserID:   res.Principal.UserID,
			Error:    "invalid_credentials",
			Metadata: map[string]string{"email": email},
		})
		return nil, ErrInvalidCredentials
	default:
		return nil, storeError(res.Err)
	}

	u, err := e.users.GetByID(ctx, res.Principal.UserID)
	if err != nil {
		return nil, storeError(err)
	}
	e.maybeUpgradeHash(ctx, u, pw)

	e.emit(ctx, audit.Event{Type: audit.EventLoginSuccess, UserID: u.ID, SessionID: res.Tokens.SessionID, Success: true})
	return &AuthResult{TokenPair: pairOf(res.Tokens), User: u}, nil
}

// Refresh rotates a refresh token. The presented token becomes unusable;
// presenting it again is treated as theft and destroys the session. The new
// access token carries the account's current role.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.emit(ctx, audit.Event{Type: audit.EventRefreshSuccess, UserID: res.UserID, SessionID: res.SessionID, Success: true})
		pair := pairOf(res.Tokens)
		return &pair, nil
	case flows.RefreshFailureReuse:
		e.emit(ctx, audit.Event{Type: audit.EventRefreshReuse, UserID: res.UserID, SessionID: res.SessionID, Error: "refresh_reuse"})
		e.logger.WithFields(logrus.Fields{"user_id": res.UserID, "session_id": res.SessionID}).
			Warn("refresh token reuse detected; session revoked")
		return nil, ErrExpiredOrInvalidToken
	case flows.RefreshFailureStore:
		return nil, storeError(res.Err)
	}

	e.emit(ctx, audit.Event{Type: audit.EventRefreshFailure, UserID: res.UserID, SessionID: res.SessionID, Error: "invalid_token"})
	if res.Failure == flows.RefreshFailureIssue {
		return nil, fmt.Errorf("refresh: %w", res.Err)
	}
	return nil, ErrExpiredOrInvalidToken
}

// Logout revokes the session behind refreshToken. It is idempotent:
// unknown, malformed or already revoked tokens succeed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	res, err := e.flows.Logout(ctx, refreshToken)
	if err != nil {
		return storeError(err)
	}
	if res.Revoked {
		e.emit(ctx, audit.Event{Type: audit.EventLogout, UserID: res.UserID, SessionID: res.SessionID, Success: true})
	}
	return nil
}

// LogoutAll revokes every refresh session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	n, err := e.flows.LogoutAll(ctx, userID)
	if err != nil {
		return 0, storeError(err)
	}
	if n > 0 {
		e.emit(ctx, audit.Event{Type: audit.EventLogout, UserID: userID, Success: true, Metadata: map[string]string{"scope": "all"}})
	}
	return n, nil
}

// Authenticate verifies an access token. Any missing, expired or malformed
// token yields ErrUnauthenticated.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Validate(ctx, accessToken)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureStore:
		return nil, storeError(res.Err)
	case flows.ValidateFailureExpired:
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, fmt.Errorf("%w: token expired", ErrUnauthenticated)
	default:
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, ErrUnauthenticated
	}

	id := &Identity{
		UserID:    res.Claims.UID,
		Role:      permission.Role(res.Claims.Role),
		SessionID: res.Claims.SID,
	}
	if res.Claims.ExpiresAt != nil {
		id.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return id, nil
}

// Authorize reports whether identity's role meets required. An identity
// with an unknown role always denies.
func (e *Engine) Authorize(identity *Identity, required permission.Role) bool {
	if identity != nil && permission.Allows(identity.Role, required) {
		return true
	}
	if e != nil && e.metrics != nil {
		e.metrics.Inc(MetricAuthorizeDenied)
	}
	return false
}

// Require is Authorize as an error: ErrUnauthenticated for a nil identity,
// ErrForbidden for an insufficient role.
func (e *Engine) Require(identity *Identity, required permission.Role) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !e.Authorize(identity, required) {
		return ErrForbidden
	}
	return nil
}

func (e *Engine) maybeUpgradeHash(ctx context.Context, u *UserRecord, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsRehash(u.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		e.warnf("password rehash failed: %v", err)
		return
	}
	updated := u.Clone()
	updated.PasswordHash = hash
	updated.UpdatedAt = time.Now().UTC()
	if err := e.users.Update(ctx, updated); err != nil {
		e.warnf("password rehash store failed: %v", err)
		return
	}
	u.PasswordHash = hash
	e.metrics.Inc(MetricPasswordRehash)
}

func (e *Engine) principalByEmail(ctx context.Context, email string) (flows.Principal, error) {
	u, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		return flows.Principal{}, err
	}
	return principalOf(u), nil
}

func (e *Engine) principalByID(ctx context.Context, id string) (flows.Principal, error) {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		return flows.Principal{}, err
	}
	return principalOf(u), nil
}

func (e *Engine) touchLastLogin(ctx context.Context, id string) error {
	return e.users.TouchLastLogin(ctx, id, time.Now().UTC())
}

func (e *Engine) warnf(format string, args ...any) {
	e.logger.Warnf(format, args...)
}

func principalOf(u *UserRecord) flows.Principal {
	return flows.Principal{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		Active:       u.IsActive,
	}
}

func pairOf(t *flows.Tokens) TokenPair {
	return TokenPair{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// storeError wraps infrastructure failures in ErrStoreUnavailable unless
// they already carry a public sentinel.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAlreadyRegistered):
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
