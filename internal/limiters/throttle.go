package limiters

import (
	"math"
	"time"
)

// DefaultMaxVerifyAttempts is the number of wrong guesses after which a code is
// discarded.
const DefaultMaxVerifyAttempts = 5

// ResendCooldown returns how long a caller must wait before a new code may be issued
// for a key whose current record has remaining lifetime left. A record that was
// issued with TTL expiration has been alive for expiration - remaining, so the
// cooldown is resendInterval minus that elapsed time, floored at zero.
//
// remaining <= 0 means no live code exists and the cooldown is zero.
func ResendCooldown(remaining, resendInterval, expiration time.Duration) time.Duration {
	if remaining <= 0 || resendInterval <= 0 {
		return 0
	}
	if remaining > expiration {
		remaining = expiration
	}
	cooldown := resendInterval - (expiration - remaining)
	if cooldown < 0 {
		return 0
	}
	return cooldown
}

// RetryAfterSeconds rounds a cooldown up to whole seconds so a caller that waits the
// advertised time is never refused again.
func RetryAfterSeconds(cooldown time.Duration) int {
	if cooldown <= 0 {
		return 0
	}
	return int(math.Ceil(cooldown.Seconds()))
}
