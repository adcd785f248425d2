package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: testSecret, Issuer: "feedback"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseHS256(t *testing.T) {
	m := newHSManager(t)

	token, exp, err := m.CreateAccess("u1", "moderator", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if until := time.Until(exp); until <= 0 || until > time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UID != "u1" || claims.Role != "moderator" || claims.SID != "s1" || claims.Issuer != "feedback" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: 0, PrivateKey: testSecret}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
}

func TestParseAccessExpired(t *testing.T) {
	m := newHSManager(t)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, _, err := m.CreateAccess("u1", "contributor", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	m.now = time.Now

	_, err = m.ParseAccess(token)
	if err == nil {
		t.Fatal("expected expired token to fail")
	}
	if !IsExpired(err) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseAccessRejectsFutureIssuedAt(t *testing.T) {
	m := newHSManager(t)
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	token, _, err := m.CreateAccess("u1", "contributor", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	m.now = time.Now

	_, err = m.ParseAccess(token)
	if !errors.Is(err, gjwt.ErrTokenUsedBeforeIssued) {
		t.Fatalf("expected used-before-issued error, got %v", err)
	}
}

func TestParseAccessRejectsTampering(t *testing.T) {
	m := newHSManager(t)
	token, _, _ := m.CreateAccess("u1", "contributor", "s1")

	other, err := NewManager(Config{AccessTTL: time.Minute, PrivateKey: []byte("fedcba9876543210fedcba9876543210"), Issuer: "feedback"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.ParseAccess(token); err == nil {
		t.Fatal("expected token signed with another secret to fail")
	}

	for _, bad := range []string{"", "not.a.jwt", token + "x"} {
		if _, err := m.ParseAccess(bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}

func TestParseAccessRequiresSessionClaims(t *testing.T) {
	m := newHSManager(t)

	claims := AccessClaims{UID: "u1", Role: "admin", RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "feedback",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected token without sid to fail")
	}

	noExp := AccessClaims{UID: "u1", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{Issuer: "feedback"}}
	token, _ = gjwt.NewWithClaims(gjwt.SigningMethodHS256, noExp).SignedString(testSecret)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected token without exp to fail")
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u1", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
	if _, _, err := m.CreateAccess("u1", "admin", "s1"); err == nil {
		t.Fatal("expected verify-only manager to refuse signing")
	}
}

func TestEd25519IssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "feedback",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.CreateAccess("u1", "admin", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(access); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(issuer, audience string, exp time.Time) string {
		claims := AccessClaims{UID: "u1", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Minute)),
		}}
		s, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
		return s
	}

	if _, err := m.ParseAccess(sign("other", "api", time.Now().Add(time.Minute))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.ParseAccess(sign("feedback", "other-api", time.Now().Add(time.Minute))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.ParseAccess(sign("feedback", "api", time.Now().Add(-15*time.Second))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.ParseAccess(sign("feedback", "api", time.Now().Add(-2*time.Minute))); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseAccessUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u1", SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, _ := tok.SignedString(priv1)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, _, err := m.CreateAccess("u1", "contributor", "s1")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}
}
