// Package middleware exposes HTTP middleware adapters for access-token
// enforcement built on top of authgate.Engine.
//
// # Guards
//
//   - [Guard] — verifies the bearer access token and injects the result.
//   - [RequireRole] — role gate layered inside a Guard-protected chain.
//
// Guard reads the Authorization header, calls Engine.Authenticate, and injects
// the [authgate.AuthResult] into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Touch the credential store.
//   - Distinguish failure causes beyond 401 and 403.
package middleware
