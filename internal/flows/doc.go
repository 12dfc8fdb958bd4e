// Package flows contains the dependency-injected orchestrators for the token and
// one-time code lifecycles.
//
// Each flow function (RunIssueSession, RunVerifyToken, RunRotateSession,
// RunRevokeSession, RunCreateCode, RunVerifyCode) accepts a typed dependency struct
// and returns a result struct carrying a failure kind. The root package maps
// failure kinds to its public error taxonomy.
//
// # Ordering
//
// A token always enters the revocation store before (never after) it leaves its
// active slot, so no instant exists where neither store rejects it. Slot writes are
// compare-and-swap so concurrent rotations of one refresh token have a single
// winner.
//
// # Architecture boundaries
//
// Flow functions coordinate the signer, the session store, the revocation store and
// the code store. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import credlife (to avoid import cycles).
//   - Log token or code values.
package flows
