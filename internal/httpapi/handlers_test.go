package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/metrics"
	"github.com/MrEthical07/feedbackAuth/store/memory"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Adm1n-Passphrase!"
	userPassword  = "Feedback-Lantern-42"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	engine *feedbackAuth.Engine
	mr     *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := feedbackAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("httpapi-test-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := feedbackAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(memory.New()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	reg := metrics.NewRegistry("feedback")
	return &testServer{
		t:      t,
		router: NewRouter(Options{Engine: engine, Metrics: reg}),
		engine: engine,
		mr:     mr,
	}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) register(email, username string) authResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email":            email,
		"username":         username,
		"first_name":       "Test",
		"last_name":        "User",
		"password":         userPassword,
		"password_confirm": userPassword,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authResponse](s.t, rec)
}

func (s *testServer) login(email, password string) authResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login/", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authResponse](s.t, rec)
}

func (s *testServer) admin() authResponse {
	s.t.Helper()
	_, err := s.engine.CreateAdmin(context.Background(), feedbackAuth.CreateAdminRequest{Email: adminEmail, Password: adminPassword})
	require.NoError(s.t, err)
	return s.login(adminEmail, adminPassword)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	reg := s.register("Alice@Example.com", "alice")
	assert.NotEmpty(t, reg.Access)
	assert.NotEmpty(t, reg.Refresh)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "contributor", string(reg.User.Role))

	rec := s.do(http.MethodPost, "/api/auth/login/", "", map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := s.login("alice@example.com", userPassword)
	rec = s.do(http.MethodGet, "/api/auth/me/", login.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[userProfile](t, rec)
	assert.Equal(t, reg.User.ID, me.ID)
	assert.Equal(t, "Test User", me.FullName)
	assert.NotNil(t, me.LastLogin)

	rec = s.do(http.MethodGet, "/api/auth/me/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)
	s.register("bob@example.com", "bob")

	rec := s.do(http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email": "bob@example.com", "username": "bob2", "first_name": "B", "last_name": "B",
		"password": userPassword, "password_confirm": userPassword,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email": "not-an-email", "username": "carol", "first_name": "C", "last_name": "C",
		"password": "12345678", "password_confirm": "different",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[map[string][]string](t, rec)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "password_confirm")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register/", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	s := newTestServer(t)
	reg := s.register("dana@example.com", "dana")

	rec := s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": reg.Refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decode[tokenResponse](t, rec)
	assert.NotEqual(t, reg.Refresh, pair.Refresh)

	// Replaying the old token destroys the session, so the new one dies too.
	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": reg.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": pair.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := s.login("dana@example.com", userPassword)
	rec = s.do(http.MethodPost, "/api/auth/logout/", "", map[string]string{"refresh_token": login.Refresh})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/logout/", "", map[string]string{"refresh_token": "garbage"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": login.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleChangeAppliesAfterRefresh(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin()
	user := s.register("erin@example.com", "erin")

	rec := s.do(http.MethodGet, "/api/auth/stats/", user.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/api/auth/users/"+user.User.ID+"/role/", user.Access, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/api/auth/users/"+user.User.ID+"/role/", admin.Access, map[string]string{"role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/auth/users/"+user.User.ID+"/role/", admin.Access, map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "moderator", string(decode[userProfile](t, rec).Role))

	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": user.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[tokenResponse](t, rec)

	rec = s.do(http.MethodGet, "/api/auth/stats/", pair.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[feedbackAuth.UserCounts](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Admins)
	assert.Equal(t, 1, stats.Moderators)

	rec = s.do(http.MethodPatch, "/api/auth/users/"+admin.User.ID+"/role/", admin.Access, map[string]string{"role": "contributor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateRevokesSessions(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin()
	user := s.register("finn@example.com", "finn")

	rec := s.do(http.MethodPatch, "/api/auth/users/"+admin.User.ID+"/deactivate/", admin.Access, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/auth/users/"+user.User.ID+"/deactivate/", admin.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": user.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/login/", "", map[string]string{"email": "finn@example.com", "password": userPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodGet, "/api/auth/users/"+user.User.ID+"/", admin.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPatch, "/api/auth/users/"+user.User.ID+"/activate/", admin.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s.login("finn@example.com", userPassword)
}

func TestListUsersVisibility(t *testing.T) {
	s := newTestServer(t)
	admin := s.admin()
	user := s.register("gail@example.com", "gail")
	s.register("hank@example.com", "hank")

	rec := s.do(http.MethodGet, "/api/auth/users/", user.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[userList](t, rec)
	assert.Equal(t, 2, list.Count)
	for _, u := range list.Results {
		assert.Equal(t, "contributor", string(u.Role))
	}

	rec = s.do(http.MethodGet, "/api/auth/users/?ordering=email", admin.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[userList](t, rec)
	require.Equal(t, 3, list.Count)
	assert.Equal(t, adminEmail, list.Results[0].Email)

	rec = s.do(http.MethodGet, "/api/auth/users/?search=hank", admin.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[userList](t, rec).Count)

	rec = s.do(http.MethodGet, "/api/auth/users/?ordering=password_hash", admin.Access, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/users/"+admin.User.ID+"/", user.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodGet, "/api/auth/users/"+user.User.ID+"/", user.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileAndChangePassword(t *testing.T) {
	s := newTestServer(t)
	user := s.register("ivy@example.com", "ivy")

	rec := s.do(http.MethodPatch, "/api/auth/profile/", user.Access, map[string]any{
		"company": "Acme", "phone_number": "+14155550123", "email_notifications": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[userProfile](t, rec)
	assert.Equal(t, "Acme", p.Company)
	assert.False(t, p.EmailNotifications)
	assert.Equal(t, "Test", p.FirstName)

	rec = s.do(http.MethodPatch, "/api/auth/profile/", user.Access, map[string]any{"phone_number": "call me"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/change-password/", user.Access, map[string]string{
		"old_password": "nope", "new_password": "Another-Long-Phrase-7", "new_password_confirm": "Another-Long-Phrase-7",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "old_password")

	other := s.login("ivy@example.com", userPassword)
	rec = s.do(http.MethodPost, "/api/auth/change-password/", user.Access, map[string]string{
		"old_password": userPassword, "new_password": "Another-Long-Phrase-7", "new_password_confirm": "Another-Long-Phrase-7",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Other sessions are revoked, the caller's own session survives.
	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": other.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/refresh/", "", map[string]string{"refresh": user.Refresh})
	assert.Equal(t, http.StatusOK, rec.Code)

	s.login("ivy@example.com", "Another-Long-Phrase-7")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.register("jo@example.com", "jo")
	rec = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedback_http_request_duration_seconds")

	s.mr.Close()
	rec = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusTable(t *testing.T) {
	cases := map[error]int{
		feedbackAuth.ErrInvalidCredentials:      http.StatusUnauthorized,
		feedbackAuth.ErrForbidden:               http.StatusForbidden,
		feedbackAuth.ErrUserNotFound:            http.StatusNotFound,
		feedbackAuth.ErrLoginRateLimited:        http.StatusTooManyRequests,
		feedbackAuth.ErrStoreUnavailable:        http.StatusServiceUnavailable,
		feedbackAuth.ErrAlreadyRegistered:       http.StatusBadRequest,
		feedbackAuth.ErrExpiredOrInvalidToken:   http.StatusUnauthorized,
		feedbackAuth.ErrRegistrationRateLimited: http.StatusTooManyRequests,
		assert.AnError:                          http.StatusInternalServerError,
	}
	for err, want := range cases {
		got, _ := Status(err)
		assert.Equal(t, want, got, err.Error())
	}

	partial := fmt.Errorf("%w: %w", feedbackAuth.ErrRegisteredNoSession, feedbackAuth.ErrStoreUnavailable)
	status, detail := Status(partial)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "account created, sign in to continue", detail)
}
