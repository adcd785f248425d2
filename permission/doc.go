// Package permission implements the role hierarchy used by feedbackAuth
// authorization checks.
//
// # Roles
//
// Roles form a closed, totally ordered set:
//
//	contributor (1) < moderator (2) < admin (3)
//
// Any value outside the set maps to level 0. A caller holding such a role
// never satisfies a requirement; a requirement for such a role ranks below
// contributor. Allows is monotonic: a caller allowed x is allowed every y
// with Level(y) <= Level(x).
//
// # Architecture boundaries
//
// This package is a pure in-memory lookup with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import feedbackAuth, jwt, or session.
//   - Compare roles by string ordering or truthiness.
package permission
