// Package store groups the feedbackAuth.UserStore implementations.
//
//   - memory: mutex-guarded maps for tests and the embedded dev server.
//   - postgres: database/sql on github.com/lib/pq.
//
// Both report a taken email or username as feedbackAuth.ErrAlreadyRegistered
// and a missing row as feedbackAuth.ErrUserNotFound.
package store
