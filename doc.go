// Package feedbackAuth implements the account and session core of the
// feedback service: registration, credential login, refresh-token rotation,
// stateless access-token validation and role-based authorization, plus the
// user administration that sits directly on top of it.
//
// An Engine is assembled with New().With...().Build() and is safe for
// concurrent use. Accounts live behind the UserStore interface (see the
// store/postgres and store/memory packages); refresh sessions live in Redis.
package feedbackAuth
