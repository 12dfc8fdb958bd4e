// Package rate provides the Redis-backed failed-login limiter used by the account
// flows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout:
//   - prefix:u:<identifier> failed logins per identifier
//   - prefix:ip:<ip> failed logins per client IP (optional)
//
// # What this package must NOT do
//
//   - Decide what a rejected login means for the account.
//   - Be imported outside the credlife module.
package rate
