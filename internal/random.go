package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	sessionIDSize     = 16
	refreshSecretSize = 32
	refreshTokenSize  = sessionIDSize + refreshSecretSize
)

// ErrMalformedRefreshToken is returned for tokens that do not decode to a
// session id followed by a secret.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// SessionID identifies one refresh session.
type SessionID [sessionIDSize]byte

// RefreshSecret is the one-time secret half of a refresh token.
type RefreshSecret [refreshSecretSize]byte

// RefreshToken is the decoded form of the opaque token handed to clients.
type RefreshToken struct {
	SessionID SessionID
	Secret    RefreshSecret
}

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

// String is base64url without padding.
func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(v string) (SessionID, error) {
	var sid SessionID
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil || len(raw) != sessionIDSize {
		return sid, errors.New("invalid session id")
	}
	copy(sid[:], raw)
	return sid, nil
}

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

// Hash returns the SHA-256 digest kept server side, base64url encoded.
func (s RefreshSecret) Hash() string {
	sum := sha256.Sum256(s[:])
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchesHash compares the secret against a stored digest in constant time.
func (s RefreshSecret) MatchesHash(stored string) bool {
	return subtle.ConstantTimeCompare([]byte(s.Hash()), []byte(stored)) == 1
}

// NewRefreshToken generates a fresh session id and secret.
func NewRefreshToken() (RefreshToken, error) {
	sid, err := NewSessionID()
	if err != nil {
		return RefreshToken{}, err
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{SessionID: sid, Secret: secret}, nil
}

// Rotate keeps the session id and draws a new secret.
func (t RefreshToken) Rotate() (RefreshToken, error) {
	secret, err := NewRefreshSecret()
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{SessionID: t.SessionID, Secret: secret}, nil
}

// Encode renders the token as base64url(sid || secret).
func (t RefreshToken) Encode() string {
	var raw [refreshTokenSize]byte
	copy(raw[:sessionIDSize], t.SessionID[:])
	copy(raw[sessionIDSize:], t.Secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// ParseRefreshToken decodes an encoded refresh token.
func ParseRefreshToken(v string) (RefreshToken, error) {
	var t RefreshToken
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil || len(raw) != refreshTokenSize {
		return t, ErrMalformedRefreshToken
	}
	copy(t.SessionID[:], raw[:sessionIDSize])
	copy(t.Secret[:], raw[sessionIDSize:])
	return t, nil
}
