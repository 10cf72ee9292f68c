// Package token manages issuance and verification of the signed, self-contained
// access and refresh tokens used by the authentication engine.
//
// # Token model
//
// Both token kinds are compact JWS strings (URL-safe, no server-side token
// store) carrying the identity id, a role snapshot taken at issuance time, a
// `typ` claim distinguishing access from refresh, and iat/exp timestamps.
// Access and refresh lifetimes are configured independently. Because
// verification is purely cryptographic it costs no I/O; revocation of refresh
// tokens is the credential store's job, not this package's.
//
// # Verification errors
//
// [Codec.Verify] distinguishes exactly two failures: [ErrExpired] when the
// token is structurally and cryptographically sound but past its expiry, and
// [ErrInvalid] for everything else (bad signature, malformed input, wrong
// algorithm, wrong token type). Callers collapse both into one unauthenticated
// signal at the transport boundary.
//
// # What this package must NOT do
//
//   - Perform any store lookup or network I/O.
//   - Import any other authgate package.
//   - Accept an access token where a refresh token is required, or vice versa.
package token
