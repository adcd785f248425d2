package feedbackAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/feedbackAuth/internal/audit"
	"github.com/MrEthical07/feedbackAuth/permission"
)

// Me returns the caller's own account. A deactivated account is treated
// as unauthenticated even while its access token is still valid.
func (e *Engine) Me(ctx context.Context, identity *Identity) (*UserRecord, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}
	u, err := e.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, storeError(err)
	}
	if !u.IsActive {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// UpdateProfile applies upd to the caller's own account.
func (e *Engine) UpdateProfile(ctx context.Context, identity *Identity, upd ProfileUpdate) (*UserRecord, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}
	return e.updateProfile(ctx, identity, identity.UserID, upd)
}

// UpdateUser applies upd to targetID. Callers may edit themselves; editing
// anyone else requires admin.
func (e *Engine) UpdateUser(ctx context.Context, identity *Identity, targetID string, upd ProfileUpdate) (*UserRecord, error) {
	required := permission.RoleContributor
	if identity != nil && identity.UserID != targetID {
		required = permission.RoleAdmin
	}
	if _, err := e.caller(ctx, identity, required); err != nil {
		return nil, err
	}
	return e.updateProfile(ctx, identity, targetID, upd)
}

func (e *Engine) updateProfile(ctx context.Context, identity *Identity, targetID string, upd ProfileUpdate) (*UserRecord, error) {
	trimProfile(&upd)
	if verr := checkStruct(e.validate, &upd); verr != nil {
		return nil, verr
	}

	u, err := e.activeUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	applyProfile(u, upd)
	u.UpdatedAt = time.Now().UTC()
	if err := e.users.Update(ctx, u); err != nil {
		return nil, storeError(err)
	}

	e.emit(ctx, audit.Event{Type: audit.EventProfileUpdate, UserID: u.ID, ActorID: actorOf(identity, u.ID), Success: true})
	return u, nil
}

// ChangePassword replaces the caller's password after checking the old
// one. Every other session of the caller is revoked; the current one
// stays valid.
func (e *Engine) ChangePassword(ctx context.Context, identity *Identity, oldPassword, newPassword, confirm string) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	u, err := e.activeUser(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnauthenticated
		}
		return err
	}

	verr := &ValidationError{}
	if ok, err := e.hasher.Verify(oldPassword, u.PasswordHash); err != nil || !ok {
		verr.Add("old_password", "old password is incorrect")
		e.emit(ctx, audit.Event{Type: audit.EventPasswordChange, UserID: u.ID, Error: "invalid_old_password"})
		return verr
	}
	if newPassword == oldPassword {
		verr.Add("new_password", "new password must be different from the current password")
	}
	e.checkPassword(verr, "new_password", "new_password_confirm", newPassword, confirm,
		u.Email, u.Username, u.FirstName, u.LastName)
	if verr.HasErrors() {
		return verr
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	if err := e.users.Update(ctx, u); err != nil {
		return storeError(err)
	}

	revoked := e.revokeOtherSessions(ctx, u.ID, identity.SessionID)
	e.emit(ctx, audit.Event{
		Type:      audit.EventPasswordChange,
		UserID:    u.ID,
		SessionID: identity.SessionID,
		Success:   true,
		Metadata:  map[string]string{"revoked_sessions": fmt.Sprint(revoked)},
	})
	return nil
}

func (e *Engine) revokeOtherSessions(ctx context.Context, userID, keep string) int {
	ids, err := e.sessions.ActiveSessionIDs(ctx, userID)
	if err != nil {
		e.warnf("list sessions for %s: %v", userID, err)
		return 0
	}
	revoked := 0
	for _, sid := range ids {
		if sid == keep {
			continue
		}
		if err := e.sessions.Delete(ctx, sid); err != nil {
			e.warnf("revoke session %s: %v", sid, err)
			continue
		}
		revoked++
	}
	return revoked
}

// ListUsers returns active accounts visible to the caller. Contributors
// only see contributors; moderators and admins see everyone.
func (e *Engine) ListUsers(ctx context.Context, identity *Identity, filter UserFilter) ([]*UserRecord, error) {
	me, err := e.caller(ctx, identity, permission.RoleContributor)
	if err != nil {
		return nil, err
	}

	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Ordering == "" {
		filter.Ordering = DefaultOrdering
	}
	if !validOrdering(filter.Ordering) {
		return nil, NewValidationError("ordering", fmt.Sprintf("must be one of: %s (optionally prefixed with -)", strings.Join(Orderings, ", ")))
	}
	for _, r := range filter.Roles {
		if !r.Valid() {
			return nil, NewValidationError("role", fmt.Sprintf("%q is not a valid choice", r))
		}
	}
	filter.ActiveOnly = true

	if !permission.CanModerate(me.Role) {
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, permission.RoleContributor) {
			return []*UserRecord{}, nil
		}
		filter.Roles = []permission.Role{permission.RoleContributor}
	}

	users, err := e.users.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

// GetUser returns an active account. Callers may read themselves; reading
// anyone else requires moderator.
func (e *Engine) GetUser(ctx context.Context, identity *Identity, targetID string) (*UserRecord, error) {
	required := permission.RoleContributor
	if identity != nil && identity.UserID != targetID {
		required = permission.RoleModerator
	}
	me, err := e.caller(ctx, identity, required)
	if err != nil {
		return nil, err
	}
	if me.ID == targetID {
		return me, nil
	}
	return e.activeUser(ctx, targetID)
}

// UpdateRole sets targetID's role. Admin only; an admin cannot remove their
// own admin role. The new role reaches the target's access tokens at their
// next refresh.
func (e *Engine) UpdateRole(ctx context.Context, identity *Identity, targetID string, role permission.Role) (*UserRecord, error) {
	if _, err := e.caller(ctx, identity, permission.RoleAdmin); err != nil {
		return nil, err
	}
	parsed, ok := permission.Parse(string(role))
	if !ok {
		return nil, NewValidationError("role", fmt.Sprintf("%q is not a valid choice", role))
	}
	if identity.UserID == targetID && parsed != permission.RoleAdmin {
		return nil, ErrSelfModification
	}

	u, err := e.getUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	previous := u.Role
	u.Role = parsed
	u.UpdatedAt = time.Now().UTC()
	if err := e.users.Update(ctx, u); err != nil {
		return nil, storeError(err)
	}

	e.emit(ctx, audit.Event{
		Type:     audit.EventRoleChange,
		UserID:   u.ID,
		ActorID:  identity.UserID,
		Success:  true,
		Metadata: map[string]string{"from": string(previous), "to": string(parsed)},
	})
	return u, nil
}

// Deactivate disables targetID and revokes all of its refresh sessions.
// Admin only; admins cannot deactivate themselves.
func (e *Engine) Deactivate(ctx context.Context, identity *Identity, targetID string) (*UserRecord, error) {
	if _, err := e.caller(ctx, identity, permission.RoleAdmin); err != nil {
		return nil, err
	}
	if identity.UserID == targetID {
		return nil, ErrSelfModification
	}

	u, err := e.setActive(ctx, targetID, false)
	if err != nil {
		return nil, err
	}
	n, err := e.sessions.DeleteAllForUser(ctx, u.ID)
	if err != nil {
		e.warnf("revoke sessions for deactivated user %s: %v", u.ID, err)
	}

	e.emit(ctx, audit.Event{
		Type:     audit.EventDeactivate,
		UserID:   u.ID,
		ActorID:  identity.UserID,
		Success:  true,
		Metadata: map[string]string{"revoked_sessions": fmt.Sprint(n)},
	})
	return u, nil
}

// Activate re-enables targetID. Admin only.
func (e *Engine) Activate(ctx context.Context, identity *Identity, targetID string) (*UserRecord, error) {
	if _, err := e.caller(ctx, identity, permission.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := e.setActive(ctx, targetID, true)
	if err != nil {
		return nil, err
	}
	e.emit(ctx, audit.Event{Type: audit.EventActivate, UserID: u.ID, ActorID: identity.UserID, Success: true})
	return u, nil
}

// Stats returns account counters. Moderator and above.
func (e *Engine) Stats(ctx context.Context, identity *Identity) (UserCounts, error) {
	if _, err := e.caller(ctx, identity, permission.RoleModerator); err != nil {
		return UserCounts{}, err
	}
	counts, err := e.users.Counts(ctx)
	if err != nil {
		return UserCounts{}, storeError(err)
	}
	return counts, nil
}

// CreateAdmin provisions a verified administrator. It bypasses the
// password policy and throttling and is meant for operator tooling.
func (e *Engine) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*UserRecord, error) {
	email := normalizeEmail(req.Email)
	if err := e.validate.Var(email, "required,email,max=254"); err != nil {
		return nil, NewValidationError("email", "enter a valid email address")
	}
	if req.Password == "" {
		return nil, NewValidationError("password", "this field is required")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	first := strings.TrimSpace(req.FirstName)
	if first == "" {
		first = "Admin"
	}
	last := strings.TrimSpace(req.LastName)
	if last == "" {
		last = "User"
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, NewValidationError("password", err.Error())
	}

	now := time.Now().UTC()
	u := &UserRecord{
		ID:                 uuid.NewString(),
		Email:              email,
		Username:           username,
		FirstName:          first,
		LastName:           last,
		Role:               permission.RoleAdmin,
		IsActive:           true,
		IsEmailVerified:    true,
		EmailNotifications: true,
		PasswordHash:       hash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.users.Create(ctx, u); err != nil {
		return nil, storeError(err)
	}

	e.emit(ctx, audit.Event{Type: audit.EventRegister, UserID: u.ID, Success: true, Metadata: map[string]string{"role": string(u.Role), "source": "create_admin"}})
	return u, nil
}

// caller loads the account behind identity and checks its stored role
// against required. Tokens outlive role changes and deactivation, so
// account administration never trusts the role claim: a deactivated or
// deleted caller is ErrUnauthenticated, a demoted one ErrForbidden.
func (e *Engine) caller(ctx context.Context, identity *Identity, required permission.Role) (*UserRecord, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}
	u, err := e.activeUser(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !permission.Allows(u.Role, required) {
		e.metrics.Inc(MetricAuthorizeDenied)
		return nil, ErrForbidden
	}
	return u, nil
}

func (e *Engine) setActive(ctx context.Context, targetID string, active bool) (*UserRecord, error) {
	u, err := e.getUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	if err := e.users.Update(ctx, u); err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

func (e *Engine) getUser(ctx context.Context, id string) (*UserRecord, error) {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// activeUser hides deactivated accounts behind ErrUserNotFound.
func (e *Engine) activeUser(ctx context.Context, id string) (*UserRecord, error) {
	u, err := e.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func trimProfile(upd *ProfileUpdate) {
	for _, p := range []*string{upd.FirstName, upd.LastName, upd.PhoneNumber, upd.Company, upd.JobTitle} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

func applyProfile(u *UserRecord, upd ProfileUpdate) {
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.PhoneNumber != nil {
		u.PhoneNumber = *upd.PhoneNumber
	}
	if upd.Company != nil {
		u.Company = *upd.Company
	}
	if upd.JobTitle != nil {
		u.JobTitle = *upd.JobTitle
	}
	if upd.EmailNotifications != nil {
		u.EmailNotifications = *upd.EmailNotifications
	}
}

func actorOf(identity *Identity, subject string) string {
	if identity == nil || identity.UserID == subject {
		return ""
	}
	return identity.UserID
}

func validOrdering(o string) bool {
	o = strings.TrimPrefix(o, "-")
	for _, allowed := range Orderings {
		if o == allowed {
			return true
		}
	}
	return false
}

func containsRole(roles []permission.Role, r permission.Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}
