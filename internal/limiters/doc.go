// Package limiters holds the pure throttle policy for one-time code issuance and the
// verify-attempt budget.
//
// # Policy
//
//   - [ResendCooldown] is a pure function of the stored record's remaining TTL, the
//     resend interval and the code expiration.
//   - [DefaultMaxVerifyAttempts] bounds wrong guesses per code.
//
// # What this package must NOT do
//
//   - Touch Redis or any store. Stores call the policy inside their own transactions.
//   - Import credlife or any sibling internal package.
package limiters
