package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/credlife/internal"
	"github.com/MrEthical07/credlife/internal/limiters"
	"github.com/MrEthical07/credlife/internal/log"
	"github.com/MrEthical07/credlife/internal/stores"
)

// CodeFailureKind classifies code flow failures for root-level mapping.
type CodeFailureKind int

const (
	CodeFailureNone CodeFailureKind = iota
	CodeFailureInvalidLength
	CodeFailureInvalidPolicy
	CodeFailureThrottled
	CodeFailureMismatch
	CodeFailureStoreUnavailable
	CodeFailureGenerate
)

// CodeFormat selects the code alphabet.
type CodeFormat int

const (
	CodeFormatNumeric CodeFormat = iota
	CodeFormatHex
)

// CodePolicy is the per-purpose issuance and verification policy.
type CodePolicy struct {
	Format CodeFormat
	// Length is digits for numeric codes and random bytes for hex codes.
	Length         int
	Expiration     time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
}

// CodeResult carries a created code, a throttle hint, or failure metadata.
type CodeResult struct {
	Failure          CodeFailureKind
	Err              error
	Code             string
	RetryAfter       time.Duration
	AttemptsExceeded bool
}

type throttleError struct {
	remaining time.Duration
}

func (e *throttleError) Error() string {
	return fmt.Sprintf("code resend throttled for %s", e.remaining)
}

// RunCreateCode generates a code and stores it for (subject, purpose), unless the
// live code was issued less than ResendInterval ago. The throttle check and the
// write happen in one store transaction.
func RunCreateCode(ctx context.Context, subject, purpose string, policy CodePolicy, deps CodeDeps) CodeResult {
	if policy.Expiration <= 0 || policy.ResendInterval < 0 || policy.ResendInterval > policy.Expiration {
		return CodeResult{Failure: CodeFailureInvalidPolicy, Err: errors.New("invalid code expiration or resend interval")}
	}

	code, err := generateCode(policy, deps)
	if err != nil {
		if errors.Is(err, internal.ErrInvalidLength) {
			return CodeResult{Failure: CodeFailureInvalidLength, Err: err}
		}
		return CodeResult{Failure: CodeFailureGenerate, Err: err}
	}

	allow := func(remaining time.Duration) error {
		if cooldown := limiters.ResendCooldown(remaining, policy.ResendInterval, policy.Expiration); cooldown > 0 {
			return &throttleError{remaining: cooldown}
		}
		return nil
	}

	err = deps.Store.Issue(ctx, subject, purpose, code, policy.Expiration, allow)
	if err != nil {
		var throttled *throttleError
		if errors.As(err, &throttled) {
			return CodeResult{Failure: CodeFailureThrottled, Err: err, RetryAfter: throttled.remaining}
		}
		log.From(ctx).Error("code_issue_failed",
			slog.String("op", "flows.RunCreateCode"),
			slog.String("purpose", purpose),
			slog.Any("err", err),
		)
		return CodeResult{Failure: CodeFailureStoreUnavailable, Err: err}
	}

	return CodeResult{Code: code}
}

func generateCode(policy CodePolicy, deps CodeDeps) (string, error) {
	switch policy.Format {
	case CodeFormatHex:
		gen := deps.NewHexCode
		if gen == nil {
			gen = internal.NewHexCode
		}
		return gen(policy.Length)
	default:
		gen := deps.NewNumericCode
		if gen == nil {
			gen = internal.NewNumericCode
		}
		return gen(policy.Length)
	}
}

// RunVerifyCode consumes the live code for (subject, purpose) if candidate matches.
// Absent, expired, superseded, wrong and exhausted codes all yield
// CodeFailureMismatch.
func RunVerifyCode(ctx context.Context, subject, purpose, candidate string, policy CodePolicy, deps CodeDeps) CodeResult {
	if candidate == "" {
		return CodeResult{Failure: CodeFailureMismatch, Err: stores.ErrCodeMismatch}
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = limiters.DefaultMaxVerifyAttempts
	}

	err := deps.Store.Consume(ctx, subject, purpose, candidate, maxAttempts)
	switch {
	case err == nil:
		return CodeResult{}
	case errors.Is(err, stores.ErrCodeAttemptsExceeded):
		log.From(ctx).Warn("code_attempts_exhausted",
			slog.String("op", "flows.RunVerifyCode"),
			slog.String("subject", subject),
			slog.String("purpose", purpose),
		)
		return CodeResult{Failure: CodeFailureMismatch, Err: err, AttemptsExceeded: true}
	case errors.Is(err, stores.ErrCodeNotFound), errors.Is(err, stores.ErrCodeMismatch):
		return CodeResult{Failure: CodeFailureMismatch, Err: err}
	default:
		return CodeResult{Failure: CodeFailureStoreUnavailable, Err: err}
	}
}
