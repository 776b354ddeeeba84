// Package middleware exposes HTTP middleware that resolves the caller's
// wallet session through a goSession.Service.
//
// # Guards
//
//   - [RequireSession] accepts a bearer session token or an X-Session-ID header.
//   - [RequireToken] accepts only a bearer session token.
//   - [ClientIP] records the caller address for rate limiting and audit.
//
// Each guard resolves the session, which also records activity on it, and
// injects it into the request context for [SessionFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Service calls. Token
// verification, existence checks and store access stay in the Service.
package middleware
