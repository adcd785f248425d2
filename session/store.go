package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the stored expiry has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshHashMismatch means a superseded or forged secret was presented.
	// The session has already been destroyed when this is returned.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	// ErrSessionCorrupt is returned when a stored hash is missing fields.
	ErrSessionCorrupt = errors.New("session corrupt")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
	rotateStatusCorrupt  int64 = 4
)

// KEYS[1] session key. ARGV: user key prefix, session id.
const deleteSessionScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
local existed = redis.call("DEL", KEYS[1])
if uid then
  redis.call("SREM", ARGV[1] .. uid, ARGV[2])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// KEYS[1] session key. ARGV: user key prefix, session id, presented hash,
// next hash, now (unix seconds).
const rotateRefreshScript = `
local data = redis.call("HMGET", KEYS[1], "uid", "hash", "exp")
local uid = data[1]
if not uid then
  return {0}
end
local exp = tonumber(data[3])
if not data[2] or not exp then
  return {4, uid}
end

local user_key = ARGV[1] .. uid

if exp <= tonumber(ARGV[5]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key, ARGV[2])
  return {1, uid}
end

if data[2] ~= ARGV[3] then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key, ARGV[2])
  return {2, uid}
end

redis.call("HSET", KEYS[1], "hash", ARGV[4])
return {3, uid}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed refresh session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a Store. prefix namespaces every key the store writes.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "fa"
	}
	return &Store{redis: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKeyPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID string) string {
	return s.userKeyPrefix() + userID
}

// Save writes sess with the given TTL and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.SessionID == "" || sess.UserID == "" {
		return errors.New("session requires id and user id")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	sessionKey := s.key(sess.SessionID)
	userKey := s.userKey(sess.UserID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey, sess.fields())
		pipe.Expire(ctx, sessionKey, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session. Missing and expired sessions return
// ErrSessionNotFound and ErrSessionExpired respectively.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	values, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}

	sess, err := parseSession(sessionID, values)
	if err != nil {
		return nil, err
	}
	if sess.ExpiresAt <= s.now().Unix() {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Rotate atomically replaces the refresh hash of sessionID when presentedHash
// matches the stored one. A mismatch or an expired session deletes the
// session. The owning user id is returned whenever the session existed.
func (s *Store) Rotate(ctx context.Context, sessionID, presentedHash, nextHash string) (string, error) {
	res, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		s.userKeyPrefix(),
		sessionID,
		presentedHash,
		nextHash,
		s.now().Unix(),
	).Slice()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return "", ErrSessionCorrupt
	}

	status, ok := res[0].(int64)
	if !ok {
		return "", ErrSessionCorrupt
	}
	var userID string
	if len(res) > 1 {
		userID, _ = res[1].(string)
	}

	switch status {
	case rotateStatusRotated:
		return userID, nil
	case rotateStatusNotFound:
		return "", ErrSessionNotFound
	case rotateStatusExpired:
		return userID, ErrSessionExpired
	case rotateStatusMismatch:
		return userID, ErrRefreshHashMismatch
	default:
		return userID, ErrSessionCorrupt
	}
}

// Delete removes one session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}, s.userKeyPrefix(), sessionID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session indexed under userID and returns
// how many session keys existed.
//
// A session saved between the index read and the delete survives; callers
// revoking access also rely on the user being marked inactive.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(deleted.Val()), nil
}

// ActiveSessionIDs lists the session ids currently indexed for userID.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func parseSession(sessionID string, values map[string]string) (*Session, error) {
	sess := &Session{
		SessionID:   sessionID,
		UserID:      values[fieldUserID],
		RefreshHash: values[fieldHash],
	}
	if sess.UserID == "" || sess.RefreshHash == "" {
		return nil, ErrSessionCorrupt
	}

	var err error
	if sess.CreatedAt, err = strconv.ParseInt(values[fieldCreatedAt], 10, 64); err != nil {
		return nil, ErrSessionCorrupt
	}
	if sess.ExpiresAt, err = strconv.ParseInt(values[fieldExpiresAt], 10, 64); err != nil {
		return nil, ErrSessionCorrupt
	}
	return sess, nil
}
