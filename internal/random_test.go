package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	tok, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}

	encoded := tok.Encode()
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("expected base64url without padding, got %q", encoded)
	}

	parsed, err := ParseRefreshToken(encoded)
	if err != nil {
		t.Fatalf("ParseRefreshToken: %v", err)
	}
	if parsed != tok {
		t.Fatal("decoded token differs from original")
	}
	if !parsed.Secret.MatchesHash(tok.Secret.Hash()) {
		t.Fatal("expected secret to match its own hash")
	}
}

func TestRotateKeepsSession(t *testing.T) {
	tok, _ := NewRefreshToken()
	next, err := tok.Rotate()
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.SessionID != tok.SessionID {
		t.Fatal("rotation must keep the session id")
	}
	if next.Secret == tok.Secret {
		t.Fatal("rotation must change the secret")
	}
	if next.Secret.MatchesHash(tok.Secret.Hash()) {
		t.Fatal("rotated secret must not match previous hash")
	}
}

func TestParseRefreshTokenMalformed(t *testing.T) {
	for _, bad := range []string{"", "abc", "!!!not-base64!!!", "aGVsbG8", strings.Repeat("A", 80)} {
		if _, err := ParseRefreshToken(bad); !errors.Is(err, ErrMalformedRefreshToken) {
			t.Fatalf("expected ErrMalformedRefreshToken for %q, got %v", bad, err)
		}
	}
}

func TestParseSessionID(t *testing.T) {
	sid, _ := NewSessionID()
	parsed, err := ParseSessionID(sid.String())
	if err != nil || parsed != sid {
		t.Fatalf("session id round trip failed: %v", err)
	}
	if _, err := ParseSessionID("short"); err == nil {
		t.Fatal("expected short session id to fail")
	}
}

func FuzzParseRefreshToken(f *testing.F) {
	tok, _ := NewRefreshToken()
	f.Add(tok.Encode())
	f.Add("")
	f.Add("AAAA")

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseRefreshToken(input)
		if err != nil {
			return
		}
		if again, err := ParseRefreshToken(parsed.Encode()); err != nil || again != parsed {
			t.Fatalf("re-encode mismatch for %q", input)
		}
	})
}
