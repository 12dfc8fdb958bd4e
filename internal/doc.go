// Package internal contains helpers that are intentionally private to credlife:
// one-time code generation and secret digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: dependency-injected token and code lifecycle orchestrators
//   - limiters: resend throttle policy and verify-attempt budget
//   - log: request-scoped slog logger carried in context
//   - rate: Redis fixed-window counters for login attempts
//   - stores: revocation and verification-code stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public credlife API.
//   - Be imported by any package outside the credlife module.
package internal
