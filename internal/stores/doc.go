// Package stores provides the Redis-backed revocation store and verification-code
// store.
//
// # Design
//
// [RevocationStore] writes one key per excluded token, keyed by the token's SHA-256
// digest, with TTL equal to the token's remaining lifetime so entries self-clean at
// natural expiry.
//
// [CodeStore] keeps one hash per (subject, purpose) holding the code digest and an
// attempt counter. Issue runs its throttle check and write inside a WATCH/MULTI
// transaction with retry on contention. Consume is a single Lua script: a match
// deletes the record, a mismatch spends one attempt.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control. It does NOT generate codes
// or decide throttle policy; callers pass the policy in as a function.
//
// # What this package must NOT do
//
//   - Import credlife or any sibling internal package other than internal itself.
//   - Store or log plaintext tokens or codes.
package stores
