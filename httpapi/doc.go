// Package httpapi exposes the authgate engine over HTTP.
//
// # Overview
//
// The package mounts a gorilla/mux router with the public authentication
// surface (/api/auth/*), the authenticated identity surface (/api/users/*),
// and an optional /metrics endpoint. Handlers translate between JSON payloads
// and engine calls; all authentication and authorization decisions stay in
// the engine and the middleware package.
//
// # Architecture boundaries
//
// This package depends on the root authgate package, the middleware package,
// and the provider registry. It never touches the credential store directly.
//
// # What this package must NOT do
//
//   - Inspect or mint tokens itself. Token handling is engine-only.
//   - Branch on identity roles. Role checks belong to middleware.RequireRole.
//   - Leak internal error detail to clients. Infrastructure failures map to a
//     generic 500 body; the detail goes to the logger.
package httpapi
