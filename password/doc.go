// Package password hashes credentials with Argon2id and enforces the account
// password policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsRehash] reports when a stored hash was produced with weaker
// parameters than the hasher's, so the caller can re-hash on the next
// successful login.
//
// # Policy
//
// [Policy.Check] mirrors the classic web-framework validators: minimum
// length, not entirely numeric, not a well-known password, and not too close
// to the account's own attributes (email, username, names).
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other feedbackAuth package.
//   - Log plaintext passwords.
package password
