// Package jwt issues and verifies short-lived access tokens. Tokens carry the
// user id, role and refresh session id; verification is stateless.
package jwt
