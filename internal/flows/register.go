package flows

import "context"

// RegisterFailureKind classifies registration failures.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureRateLimited
	RegisterFailureHash
	RegisterFailureCreate
	RegisterFailureIssue
)

// RegisterResult carries the created principal and its first token pair.
type RegisterResult struct {
	Failure   RegisterFailureKind
	Err       error
	Principal Principal
	Tokens    *Tokens
}

// RegistrationLimiter is implemented by rate.Limiter.
type RegistrationLimiter interface {
	AllowRegistration(ctx context.Context, ip string) error
}

// RegisterRequest is one validated registration. Create persists the
// account with the derived password hash.
type RegisterRequest struct {
	Password string
	IP       string
	Create   func(ctx context.Context, passwordHash string) (Principal, error)
}

// RegisterDeps captures registration flow dependencies.
type RegisterDeps struct {
	RateLimiter  RegistrationLimiter
	HashPassword func(string) (string, error)
}

// RunRegister creates the account and logs it in.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps, issue IssueDeps) RegisterResult {
	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.AllowRegistration(ctx, req.IP); err != nil {
			return RegisterResult{Failure: RegisterFailureRateLimited, Err: err}
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	p, err := req.Create(ctx, hash)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}

	tokens, err := IssueSession(ctx, p, issue)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssue, Err: err, Principal: p}
	}
	return RegisterResult{Principal: p, Tokens: tokens}
}
