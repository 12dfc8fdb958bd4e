package limiters

import (
	"testing"
	"time"
)

func TestResendCooldown(t *testing.T) {
	const (
		expiration = 600 * time.Second
		resend     = 60 * time.Second
	)
	cases := []struct {
		name      string
		remaining time.Duration
		want      time.Duration
	}{
		{"no live code", 0, 0},
		{"absent key", -2 * time.Second, 0},
		{"just issued", expiration, resend},
		{"ten seconds in", expiration - 10*time.Second, 50 * time.Second},
		{"exactly at interval", expiration - resend, 0},
		{"past interval", expiration - 61*time.Second, 0},
		{"clock skew clamps", expiration + time.Second, resend},
	}
	for _, tc := range cases {
		if got := ResendCooldown(tc.remaining, resend, expiration); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestResendCooldownDisabled(t *testing.T) {
	if got := ResendCooldown(time.Minute, 0, time.Minute); got != 0 {
		t.Fatalf("expected zero cooldown with no resend interval, got %v", got)
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		0:                       0,
		-time.Second:            0,
		time.Millisecond:        1,
		59*time.Second + 1:      60,
		60 * time.Second:        60,
		1500 * time.Millisecond: 2,
	}
	for in, want := range cases {
		if got := RetryAfterSeconds(in); got != want {
			t.Fatalf("RetryAfterSeconds(%v): expected %d, got %d", in, want, got)
		}
	}
}
