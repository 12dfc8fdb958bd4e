package credlife

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/credlife/internal/audit"
	"github.com/MrEthical07/credlife/internal/flows"
	"github.com/MrEthical07/credlife/internal/log"
	"github.com/MrEthical07/credlife/internal/rate"
	"github.com/MrEthical07/credlife/jwt"
)

// Engine issues, verifies, rotates and revokes session tokens and manages one-time
// codes. It is safe for concurrent use after [Builder.Build].
type Engine struct {
	config      Config
	signer      *jwt.Manager
	deps        flows.Deps
	rateLimiter *rate.Limiter
	principals  PrincipalStore
	hasher      PasswordHasher
	notifier    Notifier
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// SigningAlgorithm returns the JWS alg written into token headers.
func (e *Engine) SigningAlgorithm() string {
	return e.signer.Alg()
}

// AuditDropped counts audit events discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// scope puts the engine logger into ctx unless the caller attached one.
func (e *Engine) scope(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return log.Into(ctx, log.FromOr(ctx, e.logger))
}

// IssueSession starts a session for subject. Any active access or refresh token of
// subject is excluded for its remaining lifetime and replaced.
func (e *Engine) IssueSession(ctx context.Context, subject string, attrs Attributes) (TokenPair, error) {
	ctx = e.scope(ctx)
	if strings.TrimSpace(subject) == "" {
		return TokenPair{}, kindError(KindMalformed, errors.New("empty subject"))
	}

	res := flows.RunIssueSession(ctx, subject, attrs, e.deps.Tokens)
	if err := e.tokenFailure(res.Failure, res.Err); err != nil {
		e.metricInc(MetricSessionIssueFailure)
		e.emitAudit(ctx, auditEvent{eventType: AuditSessionIssued, subject: subject, err: err})
		return TokenPair{}, err
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEvent{eventType: AuditSessionIssued, success: true, subject: subject})
	return pairFromResult(res), nil
}

// VerifyToken checks signature, expiry, type and exclusion, in that order. A
// revocation store failure rejects the token with ErrStoreUnavailable.
func (e *Engine) VerifyToken(ctx context.Context, token string, expected TokenType) (*Token, error) {
	ctx = e.scope(ctx)
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	if !expected.Valid() {
		return nil, fmt.Errorf("credlife: unknown token type %q", expected)
	}

	res := flows.RunVerifyToken(ctx, token, expected, e.deps.Tokens)
	if err := e.tokenFailure(res.Failure, res.Err); err != nil {
		e.metricInc(MetricTokenRejected)
		if res.Failure == flows.TokenFailureExcluded {
			e.metricInc(MetricTokenExcludedHit)
		}
		return nil, err
	}

	e.metricInc(MetricTokenVerified)
	return tokenFromClaims(res.Claims), nil
}

// RotateSession consumes refreshToken and returns a new pair for the same subject
// and attributes. The consumed refresh token and the paired access token are
// excluded. Of concurrent calls presenting the same refresh token, at most one
// succeeds; the others fail with ErrTokenExcluded.
func (e *Engine) RotateSession(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx = e.scope(ctx)

	res := flows.RunRotateSession(ctx, refreshToken, e.deps.Tokens)
	if err := e.tokenFailure(res.Failure, res.Err); err != nil {
		e.metricInc(MetricSessionRotateFailure)
		if res.Failure == flows.TokenFailureExcluded && res.Subject != "" {
			e.metricInc(MetricRotationRaceLost)
		}
		e.emitAudit(ctx, auditEvent{
			eventType: AuditRotationRejected,
			subject:   res.Subject,
			tokenType: TokenRefresh,
			err:       err,
		})
		return TokenPair{}, err
	}

	e.metricInc(MetricSessionRotated)
	e.emitAudit(ctx, auditEvent{eventType: AuditSessionRotated, success: true, subject: res.Subject})
	return pairFromResult(res), nil
}

// RevokeSession excludes both tokens for their remaining lifetime and clears their
// active entries. Either token may be empty. Tokens that do not decode, or whose
// signature does not verify, are already invalid and are ignored.
func (e *Engine) RevokeSession(ctx context.Context, accessToken, refreshToken string) error {
	ctx = e.scope(ctx)

	res := flows.RunRevokeSession(ctx, []string{accessToken, refreshToken}, e.deps.Tokens)
	if res.Skipped > 0 {
		e.metricInc(MetricRevokeSkipped)
	}
	if err := e.tokenFailure(res.Failure, res.Err); err != nil {
		e.emitAudit(ctx, auditEvent{eventType: AuditSessionRevoked, subject: res.Subject, err: err})
		return err
	}

	if res.Excluded > 0 {
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEvent{eventType: AuditSessionRevoked, success: true, subject: res.Subject})
	}
	return nil
}

// RevokeAllForSubject excludes and clears whatever access and refresh token is
// currently active for subject.
func (e *Engine) RevokeAllForSubject(ctx context.Context, subject string) error {
	ctx = e.scope(ctx)
	if strings.TrimSpace(subject) == "" {
		return kindError(KindMalformed, errors.New("empty subject"))
	}

	res := flows.RunRevokeAll(ctx, subject, e.deps.Tokens)
	if err := e.tokenFailure(res.Failure, res.Err); err != nil {
		e.emitAudit(ctx, auditEvent{eventType: AuditSubjectRevoked, subject: subject, err: err})
		return err
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEvent{eventType: AuditSubjectRevoked, success: true, subject: subject})
	return nil
}

// InspectToken reports the exclusion entry and active slot behind token. The
// signature must verify; expiry and exclusion are reported, not enforced.
func (e *Engine) InspectToken(ctx context.Context, token string) (TokenStatus, error) {
	ctx = e.scope(ctx)

	res := flows.RunInspectToken(ctx, token, e.deps.Tokens)
	if err := e.tokenFailure(res.Failure, res.Err); err != nil {
		return TokenStatus{}, err
	}
	return TokenStatus{
		Token:        tokenFromClaims(res.Claims),
		Remaining:    res.Remaining,
		Excluded:     res.Excluded,
		ExclusionTTL: res.ExclusionTTL,
		Active:       res.Active,
		SlotTTL:      res.SlotTTL,
	}, nil
}

// CreateCode issues a one-time code for (subject, purpose) under the purpose's
// configured policy, superseding any live one. Within the resend interval of the
// previous issue it fails with ErrThrottleActive carrying the remaining wait.
func (e *Engine) CreateCode(ctx context.Context, subject string, purpose Purpose) (string, error) {
	policy, ok := e.config.Codes.policy(purpose)
	if !ok {
		return "", fmt.Errorf("credlife: unknown code purpose %q", purpose)
	}
	return e.createCode(ctx, subject, purpose, policy)
}

// CreateCodeWithPolicy is CreateCode with an explicit expiration and resend
// interval. Format, length and attempt budget still come from the purpose.
func (e *Engine) CreateCodeWithPolicy(ctx context.Context, subject string, purpose Purpose, expiration, resendInterval time.Duration) (string, error) {
	policy, ok := e.config.Codes.policy(purpose)
	if !ok {
		return "", fmt.Errorf("credlife: unknown code purpose %q", purpose)
	}
	policy.Expiration = expiration
	policy.ResendInterval = resendInterval
	return e.createCode(ctx, subject, purpose, policy)
}

func (e *Engine) createCode(ctx context.Context, subject string, purpose Purpose, policy CodeConfig) (string, error) {
	ctx = e.scope(ctx)
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("credlife: empty subject")
	}

	res := flows.RunCreateCode(ctx, subject, string(purpose), flowPolicy(policy), e.deps.Codes)
	if err := codeFailure(res); err != nil {
		if res.Failure == flows.CodeFailureThrottled {
			e.metricInc(MetricCodeThrottled)
			e.emitAudit(ctx, auditEvent{eventType: AuditCodeThrottled, subject: subject, purpose: purpose, err: err})
		} else {
			e.emitAudit(ctx, auditEvent{eventType: AuditCodeCreated, subject: subject, purpose: purpose, err: err})
		}
		if res.Failure == flows.CodeFailureStoreUnavailable {
			e.metricInc(MetricStoreUnavailable)
		}
		return "", err
	}

	e.metricInc(MetricCodeCreated)
	e.emitAudit(ctx, auditEvent{eventType: AuditCodeCreated, success: true, subject: subject, purpose: purpose})
	return res.Code, nil
}

// VerifyCode consumes the live code for (subject, purpose) when candidate matches.
// Absent, expired, superseded and wrong codes all fail with
// ErrCodeMismatchOrExpired. Once the attempt budget is spent the code is deleted.
func (e *Engine) VerifyCode(ctx context.Context, subject string, purpose Purpose, candidate string) error {
	ctx = e.scope(ctx)
	policy, ok := e.config.Codes.policy(purpose)
	if !ok {
		return fmt.Errorf("credlife: unknown code purpose %q", purpose)
	}

	res := flows.RunVerifyCode(ctx, subject, string(purpose), candidate, flowPolicy(policy), e.deps.Codes)
	if err := codeFailure(res); err != nil {
		e.metricInc(MetricCodeRejected)
		if res.AttemptsExceeded {
			e.metricInc(MetricCodeAttemptsExhausted)
		}
		if res.Failure == flows.CodeFailureStoreUnavailable {
			e.metricInc(MetricStoreUnavailable)
		}
		e.emitAudit(ctx, auditEvent{eventType: AuditCodeRejected, subject: subject, purpose: purpose, err: err})
		return err
	}

	e.metricInc(MetricCodeVerified)
	e.emitAudit(ctx, auditEvent{eventType: AuditCodeVerified, success: true, subject: subject, purpose: purpose})
	return nil
}

func (e *Engine) tokenFailure(kind flows.TokenFailureKind, err error) error {
	switch kind {
	case flows.TokenFailureNone:
		return nil
	case flows.TokenFailureMalformed:
		return kindError(KindMalformed, err)
	case flows.TokenFailureSignatureInvalid:
		return kindError(KindSignatureInvalid, err)
	case flows.TokenFailureExpired:
		return kindError(KindExpired, err)
	case flows.TokenFailureTypeMismatch:
		return kindError(KindTokenTypeMismatch, err)
	case flows.TokenFailureExcluded:
		return kindError(KindTokenExcluded, err)
	case flows.TokenFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		return kindError(KindStoreUnavailable, err)
	default:
		return fmt.Errorf("credlife: sign: %w", err)
	}
}

func codeFailure(res flows.CodeResult) error {
	switch res.Failure {
	case flows.CodeFailureNone:
		return nil
	case flows.CodeFailureInvalidLength:
		return kindError(KindInvalidLength, res.Err)
	case flows.CodeFailureThrottled:
		return &Error{Kind: KindThrottleActive, RetryAfter: res.RetryAfter, Err: res.Err}
	case flows.CodeFailureMismatch:
		return kindError(KindCodeMismatchOrExpired, res.Err)
	case flows.CodeFailureStoreUnavailable:
		return kindError(KindStoreUnavailable, res.Err)
	default:
		return fmt.Errorf("credlife: %w", res.Err)
	}
}

func flowPolicy(c CodeConfig) flows.CodePolicy {
	format := flows.CodeFormatNumeric
	if c.Format == CodeHex {
		format = flows.CodeFormatHex
	}
	return flows.CodePolicy{
		Format:         format,
		Length:         c.Length,
		Expiration:     c.Expiration,
		ResendInterval: c.ResendInterval,
		MaxAttempts:    c.MaxAttempts,
	}
}

func pairFromResult(res flows.SessionResult) TokenPair {
	pair := TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}
	if res.AccessClaims != nil && res.AccessClaims.ExpiresAt != nil {
		pair.AccessExpiresAt = res.AccessClaims.ExpiresAt.Time
	}
	if res.RefreshClaims != nil && res.RefreshClaims.ExpiresAt != nil {
		pair.RefreshExpiresAt = res.RefreshClaims.ExpiresAt.Time
	}
	return pair
}
