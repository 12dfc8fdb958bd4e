// Package credlife manages the lifecycle of session credentials and one-time codes:
// asymmetrically signed access and refresh tokens with a single active token per
// subject and type, rotation on use, revocation with exclusion entries that expire
// exactly when the token would have, and throttled single-use verification codes.
//
// Build an [Engine] with [New] and [Builder.Build]. Engine methods are safe to call
// from multiple goroutines.
//
// # Errors
//
// Lifecycle failures are *[Error] values carrying a [Kind]. Match them with
// errors.Is against the sentinels (ErrTokenExcluded, ErrThrottleActive, ...), or
// against ErrInvalidCredential for any credential failure. Call [Public] before
// returning an error to an untrusted caller.
//
// # Architecture boundaries
//
// credlife is the public surface. Signing lives in jwt, active-session slots in
// session, exclusion entries, code records and orchestration under internal/.
//
// # What this package must NOT do
//
//   - Log or audit token strings or code values.
//   - Accept a token when the revocation store cannot be consulted.
//   - Retry store operations internally; every operation is safe for the caller to retry.
package credlife
