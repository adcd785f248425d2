// Package settings loads feedbackd configuration from an optional YAML file
// and FEEDBACK_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/internal/logging"
)

// EnvPrefix is prepended to every environment override: server.addr is
// read from FEEDBACK_SERVER_ADDR.
const EnvPrefix = "FEEDBACK"

type Settings struct {
	Server   Server
	Redis    Redis
	Postgres Postgres
	Logging  logging.Config
	Auth     Auth
	Security Security
	Audit    Audit
}

type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	// Embedded starts an in-process miniredis instead of dialing Addr.
	Embedded bool
}

// Postgres selects the credential store. An empty DSN uses the in-memory
// store.
type Postgres struct {
	DSN     string
	Migrate bool
}

type Auth struct {
	SigningMethod    string
	JWTSecret        string
	PrivateKeyFile   string
	Issuer           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	RedisPrefix      string
	StrictValidation bool
}

type Security struct {
	MaxLoginAttempts   int
	LoginCooldown      time.Duration
	EnableIPThrottle   bool
	MaxRegistrations   int
	RegistrationWindow time.Duration
}

type Audit struct {
	Enabled      bool
	BufferSize   int
	CriticalWait time.Duration
	DrainTimeout time.Duration
	// Log forwards audit events to the service logger.
	Log bool
}

func setDefaults(v *viper.Viper) {
	def := feedbackAuth.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embedded", false)
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("auth.signing_method", def.JWT.SigningMethod)
	v.SetDefault("auth.issuer", def.JWT.Issuer)
	v.SetDefault("auth.access_ttl", def.JWT.AccessTTL)
	v.SetDefault("auth.refresh_ttl", def.JWT.RefreshTTL)
	v.SetDefault("auth.redis_prefix", def.Session.RedisPrefix)
	v.SetDefault("auth.strict_validation", def.Session.StrictValidation)
	v.SetDefault("security.max_login_attempts", def.Security.MaxLoginAttempts)
	v.SetDefault("security.login_cooldown", def.Security.LoginCooldown)
	v.SetDefault("security.enable_ip_throttle", def.Security.EnableIPThrottle)
	v.SetDefault("security.max_registrations", def.Security.MaxRegistrations)
	v.SetDefault("security.registration_window", def.Security.RegistrationWindow)
	v.SetDefault("audit.enabled", def.Audit.Enabled)
	v.SetDefault("audit.buffer_size", def.Audit.BufferSize)
	v.SetDefault("audit.critical_wait", def.Audit.CriticalWait)
	v.SetDefault("audit.drain_timeout", def.Audit.DrainTimeout)
	v.SetDefault("audit.log", true)

	// Keys without a default still need binding for AutomaticEnv lookups.
	for _, key := range []string{"redis.password", "postgres.dsn", "auth.jwt_secret", "auth.private_key_file"} {
		_ = v.BindEnv(key)
	}
}

// Load reads path when non-empty, then applies environment overrides.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	s := &Settings{
		Server: Server{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Redis: Redis{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Embedded: v.GetBool("redis.embedded"),
		},
		Postgres: Postgres{
			DSN:     v.GetString("postgres.dsn"),
			Migrate: v.GetBool("postgres.migrate"),
		},
		Logging: logging.Config{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			Output: v.GetString("logging.output"),
		},
		Auth: Auth{
			SigningMethod:    strings.ToLower(v.GetString("auth.signing_method")),
			JWTSecret:        v.GetString("auth.jwt_secret"),
			PrivateKeyFile:   v.GetString("auth.private_key_file"),
			Issuer:           v.GetString("auth.issuer"),
			AccessTTL:        v.GetDuration("auth.access_ttl"),
			RefreshTTL:       v.GetDuration("auth.refresh_ttl"),
			RedisPrefix:      v.GetString("auth.redis_prefix"),
			StrictValidation: v.GetBool("auth.strict_validation"),
		},
		Security: Security{
			MaxLoginAttempts:   v.GetInt("security.max_login_attempts"),
			LoginCooldown:      v.GetDuration("security.login_cooldown"),
			EnableIPThrottle:   v.GetBool("security.enable_ip_throttle"),
			MaxRegistrations:   v.GetInt("security.max_registrations"),
			RegistrationWindow: v.GetDuration("security.registration_window"),
		},
		Audit: Audit{
			Enabled:    v.GetBool("audit.enabled"),
			BufferSize:   v.GetInt("audit.buffer_size"),
			CriticalWait: v.GetDuration("audit.critical_wait"),
			DrainTimeout: v.GetDuration("audit.drain_timeout"),
			Log:          v.GetBool("audit.log"),
		},
	}
	return s, nil
}

// EngineConfig maps the auth sections onto a validated engine Config.
func (s *Settings) EngineConfig() (feedbackAuth.Config, error) {
	cfg := feedbackAuth.DefaultConfig()
	cfg.JWT.SigningMethod = s.Auth.SigningMethod
	cfg.JWT.Issuer = s.Auth.Issuer
	cfg.JWT.AccessTTL = s.Auth.AccessTTL
	cfg.JWT.RefreshTTL = s.Auth.RefreshTTL
	cfg.Session.RedisPrefix = s.Auth.RedisPrefix
	cfg.Session.StrictValidation = s.Auth.StrictValidation
	cfg.Security = feedbackAuth.SecurityConfig{
		MaxLoginAttempts:   s.Security.MaxLoginAttempts,
		LoginCooldown:      s.Security.LoginCooldown,
		EnableIPThrottle:   s.Security.EnableIPThrottle,
		MaxRegistrations:   s.Security.MaxRegistrations,
		RegistrationWindow: s.Security.RegistrationWindow,
	}
	cfg.Audit.Enabled = s.Audit.Enabled
	cfg.Audit.BufferSize = s.Audit.BufferSize
	cfg.Audit.CriticalWait = s.Audit.CriticalWait
	cfg.Audit.DrainTimeout = s.Audit.DrainTimeout

	switch {
	case s.Auth.PrivateKeyFile != "":
		key, err := os.ReadFile(s.Auth.PrivateKeyFile)
		if err != nil {
			return feedbackAuth.Config{}, fmt.Errorf("read private key: %w", err)
		}
		cfg.JWT.PrivateKey = key
	case s.Auth.JWTSecret != "":
		cfg.JWT.PrivateKey = []byte(s.Auth.JWTSecret)
	default:
		return feedbackAuth.Config{}, errors.New("auth.jwt_secret or auth.private_key_file is required")
	}

	if err := cfg.Validate(); err != nil {
		return feedbackAuth.Config{}, err
	}
	return cfg, nil
}
