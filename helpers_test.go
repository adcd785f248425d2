package feedbackAuth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/internal/audit"
	"github.com/MrEthical07/feedbackAuth/store/memory"
)

const (
	testSecret   = "feedback-auth-test-secret-0123456789"
	testPassword = "Correct-Horse-Battery-9"
)

type harness struct {
	engine  *feedbackAuth.Engine
	users   *memory.Store
	mr      *miniredis.Miniredis
	audit   *audit.ChannelSink
	metrics *countingMetrics
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) Inc(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[event]++
}

func (m *countingMetrics) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[event]
}

func testConfig() feedbackAuth.Config {
	cfg := feedbackAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newHarness(t *testing.T, mutate ...func(*feedbackAuth.Config)) *harness {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		users:   memory.New(),
		mr:      mr,
		audit:   feedbackAuth.NewChannelSink(256),
		metrics: &countingMetrics{},
	}

	engine, err := feedbackAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(h.users).
		WithAuditSink(h.audit).
		WithMetrics(h.metrics).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func registerReq(email, username string) feedbackAuth.RegisterRequest {
	return feedbackAuth.RegisterRequest{
		Email:           email,
		Username:        username,
		FirstName:       "Test",
		LastName:        "Person",
		Password:        testPassword,
		PasswordConfirm: testPassword,
	}
}

func (h *harness) register(t *testing.T, email, username string) *feedbackAuth.AuthResult {
	t.Helper()
	res, err := h.engine.Register(context.Background(), registerReq(email, username))
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

func (h *harness) identity(t *testing.T, access string) *feedbackAuth.Identity {
	t.Helper()
	id, err := h.engine.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return id
}

func (h *harness) admin(t *testing.T) *feedbackAuth.Identity {
	t.Helper()
	ctx := context.Background()
	if _, err := h.engine.CreateAdmin(ctx, feedbackAuth.CreateAdminRequest{Email: "root@example.com", Password: "Root-Pass-Phrase-1"}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	res, err := h.engine.Login(ctx, "root@example.com", "Root-Pass-Phrase-1")
	if err != nil {
		t.Fatalf("admin Login: %v", err)
	}
	return h.identity(t, res.AccessToken)
}

// waitAudit returns the first event of type typ seen within a second.
func (h *harness) waitAudit(t *testing.T, typ string) feedbackAuth.AuditEvent {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-h.audit.Events():
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s audit event", typ)
			return feedbackAuth.AuditEvent{}
		}
	}
}
