// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Records migrated from the older bcrypt-encoded user table ($2a$, $2b$, $2y$)
// still verify, and [Argon2.NeedsUpgrade] reports them so the caller can
// re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes) is enforced by the Engine at registration.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goGate package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
