// Package session stores refresh sessions in Redis.
//
// Each session is a hash holding the owning user id, the SHA-256 digest of the
// current refresh secret and its creation and expiry times. A per-user set
// indexes session ids so every session of a user can be revoked at once.
// Refresh rotation runs as a single Lua script, so two concurrent refreshes
// presenting the same secret produce exactly one winner.
package session
