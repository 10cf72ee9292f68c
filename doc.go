// Package authgate provides a credential authentication and session-token
// engine with JWT access tokens, a single rotating refresh token per identity,
// federated login linking, and role-based authorization.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine holds no mutable state between calls; the only
// contended field is the current refresh token of an identity, and its
// rotation is serialized through the [Store] compare-and-swap contract.
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// the [Store] integration interface, and value types (IdentityView, TokenPair,
// AuthResult). Token signing lives in the token subpackage, hashing in
// password, HTTP enforcement in middleware, store implementations under
// store/, and audit dispatch under internal/.
//
// # What this package must NOT do
//
//   - Expose password hashes or live refresh tokens through any view type.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Retry any store operation; refresh rotation is not safely retryable and
//     callers own retry policy everywhere else.
package authgate
