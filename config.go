package feedbackAuth

import (
	"errors"
	"time"

	"github.com/MrEthical07/feedbackAuth/jwt"
	"github.com/MrEthical07/feedbackAuth/password"
	"github.com/MrEthical07/feedbackAuth/permission"
)

// Config holds engine tuning. Start from DefaultConfig and override fields.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	// DefaultRole is assigned at registration.
	DefaultRole permission.Role
}

// JWTConfig controls token lifetimes and signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// SessionConfig controls refresh session storage.
type SessionConfig struct {
	RedisPrefix string
	// StrictValidation makes Authenticate also require the refresh session
	// to exist, so logout takes effect before the access token expires.
	StrictValidation bool
}

// PasswordConfig holds hashing cost and the acceptance policy.
type PasswordConfig struct {
	Memory           uint32 // KiB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	MinLength        int
	MaxSimilarity    float64
	// UpgradeOnLogin rehashes with current parameters after a successful
	// login against an older hash.
	UpgradeOnLogin bool
}

// SecurityConfig holds throttling budgets. Zero disables a limit.
type SecurityConfig struct {
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	EnableIPThrottle   bool
	MaxRegistrations   int
	RegistrationWindow time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds routine events on a full buffer. Role changes,
	// deactivations, password changes and refresh reuse still wait up to
	// CriticalWait.
	DropIfFull   bool
	CriticalWait time.Duration
	// DrainTimeout bounds delivery of buffered events in Engine.Close.
	DrainTimeout time.Duration
}

// DefaultConfig returns production defaults. JWT.PrivateKey must still be
// supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	policy := password.DefaultPolicy()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        "feedback",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "fa",
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			MinLength:        policy.MinLength,
			MaxSimilarity:    policy.MaxSimilarity,
			UpgradeOnLogin:   true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:   5,
			LoginCooldown:      15 * time.Minute,
			EnableIPThrottle:   false,
			MaxRegistrations:   10,
			RegistrationWindow: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize:   1024,
			DropIfFull:   true,
			CriticalWait: 250 * time.Millisecond,
			DrainTimeout: 5 * time.Second,
		},
		DefaultRole: permission.RoleContributor,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch {
	case c.JWT.AccessTTL <= 0:
		return errors.New("JWT AccessTTL must be > 0")
	case c.JWT.RefreshTTL <= 0:
		return errors.New("JWT RefreshTTL must be > 0")
	case c.JWT.AccessTTL >= c.JWT.RefreshTTL:
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	case c.JWT.SigningMethod != string(jwt.MethodHS256) && c.JWT.SigningMethod != string(jwt.MethodEd25519):
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	case c.JWT.SigningMethod == string(jwt.MethodHS256) && len(c.JWT.PrivateKey) < jwt.MinHMACKeyBytes:
		return errors.New("JWT PrivateKey must be at least 32 bytes for hs256")
	case c.JWT.SigningMethod == string(jwt.MethodEd25519) && len(c.JWT.PrivateKey) == 0:
		return errors.New("JWT PrivateKey is required for ed25519")
	case c.Session.RedisPrefix == "":
		return errors.New("Session RedisPrefix must not be empty")
	case c.Password.MinLength < 0:
		return errors.New("Password MinLength must be >= 0")
	case c.Password.MaxSimilarity < 0 || c.Password.MaxSimilarity > 1:
		return errors.New("Password MaxSimilarity must be within [0,1]")
	case c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0:
		return errors.New("Security LoginCooldown must be > 0 when login throttling is enabled")
	case c.Security.MaxRegistrations > 0 && c.Security.RegistrationWindow <= 0:
		return errors.New("Security RegistrationWindow must be > 0 when registration throttling is enabled")
	case c.Audit.Enabled && c.Audit.BufferSize <= 0:
		return errors.New("Audit BufferSize must be > 0")
	case c.Audit.CriticalWait < 0 || c.Audit.DrainTimeout < 0:
		return errors.New("Audit CriticalWait and DrainTimeout must be >= 0")
	case !c.DefaultRole.Valid():
		return errors.New("DefaultRole must be a known role")
	}

	return c.hashConfig().Validate()
}

func (c *Config) hashConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func (c *Config) policy() password.Policy {
	return password.Policy{
		MinLength:     c.Password.MinLength,
		MaxSimilarity: c.Password.MaxSimilarity,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
