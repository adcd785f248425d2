package feedbackAuth_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/permission"
	"github.com/MrEthical07/feedbackAuth/store/memory"
)

func TestRegisterLoginAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg := h.register(t, " Alice@Example.com ", "alice")
	require.NotEmpty(t, reg.AccessToken)
	require.NotEmpty(t, reg.RefreshToken)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, permission.RoleContributor, reg.User.Role)
	assert.True(t, reg.User.IsActive)
	assert.NotEmpty(t, reg.User.PasswordHash)

	res, err := h.engine.Login(ctx, "ALICE@example.com", testPassword)
	require.NoError(t, err)

	id := h.identity(t, res.AccessToken)
	assert.Equal(t, reg.User.ID, id.UserID)
	assert.Equal(t, permission.RoleContributor, id.Role)
	assert.NotEmpty(t, id.SessionID)
	assert.False(t, id.ExpiresAt.IsZero())

	u, err := h.engine.Me(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newHarness(t)
	h.register(t, "bob@example.com", "bob")

	_, err := h.engine.Register(context.Background(), registerReq("BOB@example.com", "bobby"))
	assert.ErrorIs(t, err, feedbackAuth.ErrAlreadyRegistered)

	_, err = h.engine.Register(context.Background(), registerReq("other@example.com", "Bob"))
	assert.ErrorIs(t, err, feedbackAuth.ErrAlreadyRegistered)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(*feedbackAuth.RegisterRequest)
		field  string
	}{
		{"bad email", func(r *feedbackAuth.RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"missing first name", func(r *feedbackAuth.RegisterRequest) { r.FirstName = "  " }, "first_name"},
		{"bad username", func(r *feedbackAuth.RegisterRequest) { r.Username = "has space" }, "username"},
		{"bad phone", func(r *feedbackAuth.RegisterRequest) { r.PhoneNumber = "call me" }, "phone_number"},
		{"mismatch", func(r *feedbackAuth.RegisterRequest) { r.PasswordConfirm = "Something-Else-42" }, "password_confirm"},
		{"short password", func(r *feedbackAuth.RegisterRequest) { r.Password, r.PasswordConfirm = "pw1", "pw1" }, "password"},
		{"numeric password", func(r *feedbackAuth.RegisterRequest) { r.Password, r.PasswordConfirm = "8675309123", "8675309123" }, "password"},
		{"long bio", func(r *feedbackAuth.RegisterRequest) { r.Bio = strings.Repeat("x", 501) }, "bio"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := registerReq("carol@example.com", "carol")
			tc.mutate(&req)

			_, err := h.engine.Register(context.Background(), req)
			require.ErrorIs(t, err, feedbackAuth.ErrValidation)

			var verr *feedbackAuth.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tc.field)
		})
	}

	// nothing was persisted by the failed attempts
	h.register(t, "carol@example.com", "carol")
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "dave@example.com", "dave")

	_, err := h.engine.Login(ctx, "dave@example.com", "wrong-password-123")
	assert.ErrorIs(t, err, feedbackAuth.ErrInvalidCredentials)

	_, err = h.engine.Login(ctx, "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, feedbackAuth.ErrInvalidCredentials)

	ev := h.waitAudit(t, feedbackAuth.AuditLoginFailure)
	assert.False(t, ev.Success)
	assert.Equal(t, "invalid_credentials", ev.Error)
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, func(c *feedbackAuth.Config) {
		c.Security.MaxLoginAttempts = 3
	})
	ctx := context.Background()
	h.register(t, "erin@example.com", "erin")

	for i := 0; i < 3; i++ {
		_, err := h.engine.Login(ctx, "erin@example.com", "wrong-password-123")
		require.ErrorIs(t, err, feedbackAuth.ErrInvalidCredentials)
	}

	_, err := h.engine.Login(ctx, "erin@example.com", testPassword)
	assert.ErrorIs(t, err, feedbackAuth.ErrLoginRateLimited)
	h.waitAudit(t, feedbackAuth.AuditLoginThrottled)

	h.mr.FastForward(16 * time.Minute)
	_, err = h.engine.Login(ctx, "erin@example.com", testPassword)
	assert.NoError(t, err)
}

func TestRegistrationRateLimited(t *testing.T) {
	h := newHarness(t, func(c *feedbackAuth.Config) {
		c.Security.MaxRegistrations = 2
	})
	ctx := feedbackAuth.WithClientIP(context.Background(), "203.0.113.7")

	_, err := h.engine.Register(ctx, registerReq("r1@example.com", "r1"))
	require.NoError(t, err)
	_, err = h.engine.Register(ctx, registerReq("r2@example.com", "r2"))
	require.NoError(t, err)
	_, err = h.engine.Register(ctx, registerReq("r3@example.com", "r3"))
	assert.ErrorIs(t, err, feedbackAuth.ErrRegistrationRateLimited)

	other := feedbackAuth.WithClientIP(context.Background(), "203.0.113.8")
	_, err = h.engine.Register(other, registerReq("r3@example.com", "r3"))
	assert.NoError(t, err)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, "fay@example.com", "fay")

	pair, err := h.engine.Refresh(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, pair.RefreshToken)

	id := h.identity(t, pair.AccessToken)
	assert.Equal(t, reg.User.ID, id.UserID)

	// replaying the spent token revokes the whole session
	_, err = h.engine.Refresh(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrExpiredOrInvalidToken)
	h.waitAudit(t, feedbackAuth.AuditRefreshReuse)

	_, err = h.engine.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrExpiredOrInvalidToken)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	for _, tok := range []string{"", "abc", strings.Repeat("A", 64)} {
		_, err := h.engine.Refresh(context.Background(), tok)
		assert.ErrorIs(t, err, feedbackAuth.ErrExpiredOrInvalidToken, tok)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, "gus@example.com", "gus")

	require.NoError(t, h.engine.Logout(ctx, reg.RefreshToken))
	require.NoError(t, h.engine.Logout(ctx, reg.RefreshToken))
	require.NoError(t, h.engine.Logout(ctx, "garbage"))

	_, err := h.engine.Refresh(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrExpiredOrInvalidToken)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, "hal@example.com", "hal")

	for _, tok := range []string{"", "not.a.jwt", reg.AccessToken + "x", reg.RefreshToken} {
		_, err := h.engine.Authenticate(context.Background(), tok)
		assert.ErrorIs(t, err, feedbackAuth.ErrUnauthenticated)
	}
	assert.GreaterOrEqual(t, h.metrics.Count(feedbackAuth.MetricAuthenticateFailure), 4)
}

func TestAuthenticateSignedByOtherKey(t *testing.T) {
	a := newHarness(t)
	b := newHarness(t, func(c *feedbackAuth.Config) {
		c.JWT.PrivateKey = []byte("a-completely-different-secret-key-42")
	})
	reg := a.register(t, "ivy@example.com", "ivy")

	_, err := b.engine.Authenticate(context.Background(), reg.AccessToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrUnauthenticated)
}

func TestStrictValidationSeesLogout(t *testing.T) {
	h := newHarness(t, func(c *feedbackAuth.Config) {
		c.Session.StrictValidation = true
	})
	ctx := context.Background()
	reg := h.register(t, "jay@example.com", "jay")
	h.identity(t, reg.AccessToken)

	require.NoError(t, h.engine.Logout(ctx, reg.RefreshToken))
	_, err := h.engine.Authenticate(ctx, reg.AccessToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrUnauthenticated)
}

func TestRedisDownIsStoreUnavailable(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, "kim@example.com", "kim")
	h.mr.Close()

	_, err := h.engine.Refresh(context.Background(), reg.RefreshToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrStoreUnavailable)
	assert.ErrorIs(t, h.engine.Ping(context.Background()), feedbackAuth.ErrStoreUnavailable)
}

func TestAuthorizeIsMonotonic(t *testing.T) {
	h := newHarness(t)
	roles := append([]permission.Role{"superuser", ""}, permission.Roles()...)

	for _, have := range roles {
		id := &feedbackAuth.Identity{UserID: "u", Role: have}
		for _, need := range roles {
			if !h.engine.Authorize(id, need) {
				continue
			}
			for _, lower := range roles {
				if permission.Level(lower) <= permission.Level(need) {
					assert.True(t, h.engine.Authorize(id, lower), "%s allows %s but not %s", have, need, lower)
				}
			}
		}
	}

	assert.False(t, h.engine.Authorize(nil, permission.RoleContributor))
	assert.False(t, h.engine.Authorize(&feedbackAuth.Identity{Role: "superuser"}, permission.RoleContributor))
	assert.False(t, h.engine.Authorize(&feedbackAuth.Identity{Role: "superuser"}, "superuser"))
	assert.True(t, h.engine.Authorize(&feedbackAuth.Identity{Role: permission.RoleContributor}, "superuser"))

	assert.ErrorIs(t, h.engine.Require(nil, permission.RoleContributor), feedbackAuth.ErrUnauthenticated)
	assert.ErrorIs(t, h.engine.Require(&feedbackAuth.Identity{Role: permission.RoleContributor}, permission.RoleModerator), feedbackAuth.ErrForbidden)
}

func TestAuditAndMetrics(t *testing.T) {
	h := newHarness(t)
	ctx := feedbackAuth.WithClientIP(context.Background(), "198.51.100.4")
	reg, err := h.engine.Register(ctx, registerReq("lea@example.com", "lea"))
	require.NoError(t, err)

	ev := h.waitAudit(t, feedbackAuth.AuditRegister)
	assert.Equal(t, reg.User.ID, ev.UserID)
	assert.Equal(t, "198.51.100.4", ev.IP)
	assert.True(t, ev.Success)
	assert.False(t, ev.Timestamp.IsZero())

	_, err = h.engine.Login(ctx, "lea@example.com", testPassword)
	require.NoError(t, err)
	h.waitAudit(t, feedbackAuth.AuditLoginSuccess)

	assert.Equal(t, 1, h.metrics.Count(feedbackAuth.AuditRegister))
	assert.Equal(t, 1, h.metrics.Count(feedbackAuth.AuditLoginSuccess))
	assert.Zero(t, h.engine.AuditDropped())
	assert.Zero(t, h.engine.AuditDroppedCritical())
}

func TestBuildRequiresDependencies(t *testing.T) {
	_, err := feedbackAuth.New().WithConfig(testConfig()).Build()
	assert.Error(t, err, "missing redis")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err = feedbackAuth.New().WithConfig(testConfig()).WithRedis(rdb).Build()
	assert.Error(t, err, "missing user store")

	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("short")
	_, err = feedbackAuth.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(memory.New()).Build()
	assert.Error(t, err, "short key")

	b := feedbackAuth.New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(memory.New())
	e, err := b.Build()
	require.NoError(t, err)
	defer e.Close()
	_, err = b.Build()
	assert.Error(t, err, "builder reuse")
}

func TestSecurityReport(t *testing.T) {
	h := newHarness(t, func(c *feedbackAuth.Config) {
		c.Security.MaxRegistrations = 0
	})

	r := h.engine.SecurityReport()
	assert.Equal(t, "hs256", r.SigningAlgorithm)
	assert.True(t, r.LoginThrottle)
	assert.False(t, r.RegistrationThrottle)
	assert.Equal(t, uint32(8*1024), r.Argon2.Memory)

	warnings := r.Warnings()
	assert.Contains(t, warnings, "argon2 cost is below the recommended defaults")
	assert.Contains(t, warnings, "registration throttling is disabled")
	assert.NotContains(t, warnings, "login throttling is disabled")
}

type flakyUsers struct {
	*memory.Store
	down atomic.Bool
}

func (f *flakyUsers) GetByID(ctx context.Context, id string) (*feedbackAuth.UserRecord, error) {
	if f.down.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}
	return f.Store.GetByID(ctx, id)
}

func TestRefreshSurvivesUserStoreOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	users := &flakyUsers{Store: memory.New()}
	engine, err := feedbackAuth.New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(users).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	ctx := context.Background()

	reg, err := engine.Register(ctx, registerReq("oona@example.com", "oona"))
	require.NoError(t, err)

	users.down.Store(true)
	_, err = engine.Refresh(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, feedbackAuth.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, feedbackAuth.ErrExpiredOrInvalidToken)

	users.down.Store(false)
	pair, err := engine.Refresh(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, pair.RefreshToken)
}

type hookedUsers struct {
	*memory.Store
	afterCreate func()
}

func (h *hookedUsers) Create(ctx context.Context, u *feedbackAuth.UserRecord) error {
	if err := h.Store.Create(ctx, u); err != nil {
		return err
	}
	h.afterCreate()
	return nil
}

func TestRegisterWithoutSessionKeepsAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	users := &hookedUsers{Store: memory.New(), afterCreate: mr.Close}
	engine, err := feedbackAuth.New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(users).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	ctx := context.Background()

	_, err = engine.Register(ctx, registerReq("pia@example.com", "pia"))
	assert.ErrorIs(t, err, feedbackAuth.ErrRegisteredNoSession)
	assert.ErrorIs(t, err, feedbackAuth.ErrStoreUnavailable)
	u, err := users.GetByEmail(ctx, "pia@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsActive)

	users.afterCreate = func() {}
	require.NoError(t, mr.Restart())
	_, err = engine.Register(ctx, registerReq("pia@example.com", "pia"))
	assert.ErrorIs(t, err, feedbackAuth.ErrAlreadyRegistered)
	_, err = engine.Login(ctx, "pia@example.com", testPassword)
	assert.NoError(t, err)
}
