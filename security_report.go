package feedbackAuth

import (
	"time"

	"github.com/MrEthical07/feedbackAuth/password"
)

// SecurityReport summarizes the security-relevant settings of a built
// engine. It carries no key material.
type SecurityReport struct {
	SigningAlgorithm     string
	StrictValidation     bool
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	Argon2               PasswordConfigReport
	LoginThrottle        bool
	IPThrottle           bool
	RegistrationThrottle bool
	AuditEnabled         bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config
	return SecurityReport{
		SigningAlgorithm: c.JWT.SigningMethod,
		StrictValidation: c.Session.StrictValidation,
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.JWT.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		LoginThrottle:        c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown > 0,
		IPThrottle:           c.Security.EnableIPThrottle && c.Security.MaxLoginAttempts > 0,
		RegistrationThrottle: c.Security.MaxRegistrations > 0,
		AuditEnabled:         c.Audit.Enabled,
	}
}

// Warnings lists settings weaker than the production defaults.
func (r SecurityReport) Warnings() []string {
	var out []string
	def := password.DefaultConfig()
	if r.Argon2.Memory < def.Memory || r.Argon2.Time < def.Time {
		out = append(out, "argon2 cost is below the recommended defaults")
	}
	if !r.LoginThrottle {
		out = append(out, "login throttling is disabled")
	}
	if !r.RegistrationThrottle {
		out = append(out, "registration throttling is disabled")
	}
	if !r.AuditEnabled {
		out = append(out, "audit events are disabled")
	}
	if r.AccessTTL > time.Hour {
		out = append(out, "access tokens live longer than one hour")
	}
	return out
}
