// Package middleware adapts feedbackAuth.Engine authentication to HTTP.
//
// [Guard] wraps a net/http handler; [RequireAuth] and [RequireRole] are the
// gin equivalents. All of them read "Authorization: Bearer <token>", call
// Engine.Authenticate and store the resulting identity in the request
// context, where [IdentityFromContext] finds it.
//
// Authentication failures answer 401, an insufficient role answers 403 and
// a session-store outage (strict validation only) answers 503. The package
// makes no decisions of its own beyond that.
package middleware
