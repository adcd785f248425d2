package feedbackAuth

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/feedbackAuth/permission"
)

// UserRecord is a stored account.
type UserRecord struct {
	ID                 string          `json:"id"`
	Email              string          `json:"email"`
	Username           string          `json:"username"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	Role               permission.Role `json:"role"`
	IsActive           bool            `json:"is_active"`
	IsEmailVerified    bool            `json:"is_email_verified"`
	EmailNotifications bool            `json:"email_notifications"`
	Bio                string          `json:"bio"`
	PhoneNumber        string          `json:"phone_number"`
	Company            string          `json:"company"`
	JobTitle           string          `json:"job_title"`
	PasswordHash       string          `json:"-"`
	LastLogin          *time.Time      `json:"last_login"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// FullName joins first and last name.
func (u *UserRecord) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Clone returns a deep copy.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// Identity is the authenticated caller derived from an access token.
type Identity struct {
	UserID    string
	Role      permission.Role
	SessionID string
	ExpiresAt time.Time
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	TokenPair
	User *UserRecord
}

// RegisterRequest is a self-service registration.
type RegisterRequest struct {
	Email           string `validate:"required,email,max=254"`
	Username        string `validate:"required,max=150,username"`
	FirstName       string `validate:"required,max=150"`
	LastName        string `validate:"required,max=150"`
	Password        string `validate:"required"`
	PasswordConfirm string `validate:"required"`
	Company         string `validate:"max=255"`
	JobTitle        string `validate:"max=255"`
	PhoneNumber     string `validate:"omitempty,phone"`
	Bio             string `validate:"max=500"`
}

// ProfileUpdate lists the self-editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName          *string `validate:"omitempty,min=1,max=150"`
	LastName           *string `validate:"omitempty,min=1,max=150"`
	Bio                *string `validate:"omitempty,max=500"`
	PhoneNumber        *string `validate:"omitempty,phone"`
	Company            *string `validate:"omitempty,max=255"`
	JobTitle           *string `validate:"omitempty,max=255"`
	EmailNotifications *bool
}

// CreateAdminRequest provisions an administrator from the command line.
// Empty Username defaults to the local part of Email; empty names default
// to "Admin" and "User".
type CreateAdminRequest struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	// Roles restricts results to these roles when non-empty.
	Roles      []permission.Role
	ActiveOnly bool
	// Search matches email, username, first/last name and company,
	// case-insensitively.
	Search string
	// Ordering is a field name optionally prefixed with "-" for descending.
	Ordering string
	Limit    int
	Offset   int
}

// Orderings accepted by UserFilter.Ordering, without the "-" prefix.
var Orderings = []string{"created_at", "email", "first_name", "last_name", "last_login"}

// DefaultOrdering lists newest accounts first.
const DefaultOrdering = "-created_at"

// UserCounts summarizes the account table. Role counts include active
// accounts only.
type UserCounts struct {
	Total        int `json:"total_users"`
	Active       int `json:"active_users"`
	Inactive     int `json:"inactive_users"`
	Verified     int `json:"verified_users"`
	Unverified   int `json:"unverified_users"`
	Admins       int `json:"admins"`
	Moderators   int `json:"moderators"`
	Contributors int `json:"contributors"`
}

// UserStore persists accounts. Emails are stored lower-cased; both email
// and username are unique and a clash is reported as ErrAlreadyRegistered.
// Missing rows are reported as ErrUserNotFound.
type UserStore interface {
	Create(ctx context.Context, u *UserRecord) error
	GetByID(ctx context.Context, id string) (*UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	Update(ctx context.Context, u *UserRecord) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter UserFilter) ([]*UserRecord, error)
	Counts(ctx context.Context) (UserCounts, error)
	Ping(ctx context.Context) error
}
