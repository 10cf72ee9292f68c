// Package password implements one-way password hashing and verification with
// Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every call to [Hasher.Hash] draws a fresh random salt, so hashing the same
// plaintext twice yields different strings. [Hasher.Verify] recomputes the key
// with the parameters embedded in the stored hash and compares in constant
// time; a malformed stored hash verifies as false, never as an error.
//
// The [Hasher] supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters, [Hasher.NeedsRehash] returns true so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, required character classes) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authgate package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
