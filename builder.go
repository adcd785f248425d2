package feedbackAuth

import (
	"errors"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/feedbackAuth/internal/audit"
	"github.com/MrEthical07/feedbackAuth/internal/flows"
	"github.com/MrEthical07/feedbackAuth/internal/rate"
	"github.com/MrEthical07/feedbackAuth/jwt"
	"github.com/MrEthical07/feedbackAuth/password"
	"github.com/MrEthical07/feedbackAuth/session"
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     UserStore
	logger    logrus.FieldLogger
	auditSink AuditSink
	metrics   MetricsSink

	built bool
}

// New starts a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithLogger sets the logger used for operational warnings. Without one,
// warnings are discarded.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetrics(sink MetricsSink) *Builder {
	b.metrics = sink
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.hashConfig())
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("feedback-auth-timing-equalizer")
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	sessions := session.NewStore(b.redis, cfg.Session.RedisPrefix)
	limiter := rate.New(b.redis, rate.Config{
		Prefix:             cfg.Session.RedisPrefix,
		EnableIPThrottle:   cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:   cfg.Security.MaxLoginAttempts,
		LoginCooldown:      cfg.Security.LoginCooldown,
		MaxRegistrations:   cfg.Security.MaxRegistrations,
		RegistrationWindow: cfg.Security.RegistrationWindow,
	})

	e := &Engine{
		config:     cfg,
		users:      b.users,
		sessions:   sessions,
		limiter:    limiter,
		jwtManager: jm,
		hasher:     hasher,
		policy:     cfg.policy(),
		validate:   newValidator(),
		logger:     logger,
		metrics:    metrics,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:      cfg.Audit.Enabled,
			BufferSize:   cfg.Audit.BufferSize,
			DropIfFull:   cfg.Audit.DropIfFull,
			CriticalWait: cfg.Audit.CriticalWait,
			DrainTimeout: cfg.Audit.DrainTimeout,
		}, b.auditSink),
	}

	e.flows = flows.New(flows.Deps{
		Issue: flows.IssueDeps{
			Sessions:     sessions,
			RefreshTTL:   cfg.JWT.RefreshTTL,
			CreateAccess: jm.CreateAccess,
		},
		Login: flows.LoginDeps{
			RateLimiter:    limiter,
			FindByEmail:    e.principalByEmail,
			UserNotFound:   ErrUserNotFound,
			VerifyPassword: hasher.Verify,
			DummyHash:      dummyHash,
			TouchLastLogin: e.touchLastLogin,
			Warn:           e.warnf,
		},
		Register: flows.RegisterDeps{
			RateLimiter:  limiter,
			HashPassword: hasher.Hash,
		},
		Refresh: flows.RefreshDeps{
			LoadUser:     e.principalByID,
			UserNotFound: ErrUserNotFound,
		},
		Validate: flows.ValidateDeps{
			ParseAccess: jm.ParseAccess,
			Strict:      cfg.Session.StrictValidation,
			Sessions:    sessions,
		},
		Logout: flows.LogoutDeps{
			Sessions: sessions,
		},
	})

	b.built = true
	return e, nil
}
