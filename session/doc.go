// Package session provides the Redis-backed active-session store: for every
// (subject, token type) slot it records the single token considered current.
//
// # Slots
//
// A slot key is prefix:type:subject and its value is the signed token string. The
// slot TTL equals the token lifetime, so a slot lapses together with its token.
// Replacement and removal go through Lua compare-and-swap / compare-and-delete so
// concurrent rotations over the same slot have at most one winner.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) only. It does NOT parse or verify
// tokens and does NOT write exclusion entries; sequencing of exclusion and slot
// replacement belongs to internal/flows.
//
// # What this package must NOT do
//
//   - Import credlife, jwt, or internal packages (no upward imports).
//   - Log token values.
package session
