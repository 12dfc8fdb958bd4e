package credlife

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MrEthical07/credlife/internal/log"
	"github.com/MrEthical07/credlife/internal/rate"
	"github.com/MrEthical07/credlife/password"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) accountsReady() error {
	if e == nil || e.principals == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) hashPassword(plaintext string) (string, error) {
	digest, err := e.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return "", fmt.Errorf("%w: %v", ErrAccountRequestInvalid, err)
		}
		return "", err
	}
	return digest, nil
}

// Register creates a principal and dispatches an email verification code. A failed
// code dispatch is logged and does not fail the registration.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Principal, error) {
	if err := e.accountsReady(); err != nil {
		return Principal{}, err
	}
	ctx = e.scope(ctx)

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return Principal{}, ErrAccountRequestInvalid
	}

	switch _, err := e.principals.FindByEmail(ctx, email); {
	case err == nil:
		e.metricInc(MetricAccountDuplicate)
		e.emitAudit(ctx, auditEvent{eventType: AuditAccountCreated, err: ErrAccountExists})
		return Principal{}, ErrAccountExists
	case !errors.Is(err, ErrPrincipalNotFound):
		return Principal{}, err
	}

	digest, err := e.hashPassword(req.Password)
	if err != nil {
		return Principal{}, err
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}

	created, err := e.principals.Create(ctx, CreatePrincipalInput{
		Email:        email,
		Role:         role,
		PasswordHash: digest,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountDuplicate)
		}
		e.emitAudit(ctx, auditEvent{eventType: AuditAccountCreated, err: err})
		return Principal{}, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEvent{eventType: AuditAccountCreated, success: true, subject: created.ID})

	if !created.Verified {
		e.dispatchCode(ctx, created, PurposeEmailVerification)
	}
	return created, nil
}

// Login checks email and password and starts a session. Unknown emails and wrong
// passwords both fail with ErrInvalidCredentials and count against the failed-login
// budget of the email and the client IP.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (LoginResult, error) {
	if err := e.accountsReady(); err != nil {
		return LoginResult{}, err
	}
	ctx = e.scope(ctx)
	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEvent{eventType: AuditLoginFailure, err: ErrLoginRateLimited})
			return LoginResult{}, ErrLoginRateLimited
		}
		e.metricInc(MetricStoreUnavailable)
		return LoginResult{}, kindError(KindStoreUnavailable, err)
	}

	principal, err := e.principals.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrPrincipalNotFound) {
		return LoginResult{}, err
	}

	ok := false
	if err == nil {
		ok, err = e.hasher.Verify(principal.PasswordHash, plaintext)
		if err != nil {
			log.From(ctx).Error("password_verify_failed",
				slog.String("op", "credlife.Login"),
				slog.String("subject", principal.ID),
				slog.Any("err", err),
			)
			ok = false
		}
	}
	if !ok {
		if incErr := e.rateLimiter.IncrementLogin(ctx, email, ip); incErr != nil {
			log.From(ctx).Warn("login_counter_failed",
				slog.String("op", "credlife.Login"),
				slog.Any("err", incErr),
			)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEvent{eventType: AuditLoginFailure, subject: principal.ID, err: ErrInvalidCredentials})
		return LoginResult{}, ErrInvalidCredentials
	}

	if e.config.Account.RequireVerifiedLogin && !principal.Verified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEvent{eventType: AuditLoginFailure, subject: principal.ID, err: ErrAccountUnverified})
		return LoginResult{}, ErrAccountUnverified
	}

	if err := e.rateLimiter.ResetLogin(ctx, email); err != nil {
		log.From(ctx).Warn("login_counter_reset_failed",
			slog.String("op", "credlife.Login"),
			slog.Any("err", err),
		)
	}

	tokens, err := e.IssueSession(ctx, principal.ID, principal.Attributes())
	if err != nil {
		return LoginResult{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEvent{eventType: AuditLoginSuccess, success: true, subject: principal.ID})
	principal.PasswordHash = ""
	return LoginResult{Principal: principal, Tokens: tokens}, nil
}

// Logout revokes the presented pair.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := e.RevokeSession(ctx, accessToken, refreshToken); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}

// Refresh rotates the presented refresh token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return e.RotateSession(ctx, refreshToken)
}

// ResendEmailVerification issues a fresh verification code for an unverified
// principal. Unknown and already verified emails succeed without sending anything.
func (e *Engine) ResendEmailVerification(ctx context.Context, email string) error {
	if err := e.accountsReady(); err != nil {
		return err
	}
	ctx = e.scope(ctx)

	principal, err := e.principals.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrPrincipalNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if principal.Verified {
		return nil
	}

	code, err := e.CreateCode(ctx, principal.ID, PurposeEmailVerification)
	if err != nil {
		return err
	}
	e.notify(ctx, principal, PurposeEmailVerification, code)
	return nil
}

// ConfirmEmail consumes an email verification code and marks the principal
// verified. Unknown emails fail like a wrong code.
func (e *Engine) ConfirmEmail(ctx context.Context, email, code string) error {
	if err := e.accountsReady(); err != nil {
		return err
	}
	ctx = e.scope(ctx)

	principal, err := e.principals.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrPrincipalNotFound) {
		return kindError(KindCodeMismatchOrExpired, err)
	}
	if err != nil {
		return err
	}

	if err := e.VerifyCode(ctx, principal.ID, PurposeEmailVerification, code); err != nil {
		return err
	}
	if err := e.principals.MarkVerified(ctx, principal.ID); err != nil {
		return err
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEvent{eventType: AuditEmailVerified, success: true, subject: principal.ID})
	return nil
}

// ForgotPassword dispatches a password reset code. It succeeds for unknown emails
// and while the resend throttle is active, so the response does not reveal whether
// an account exists.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if err := e.accountsReady(); err != nil {
		return err
	}
	ctx = e.scope(ctx)
	e.metricInc(MetricPasswordResetRequest)

	principal, err := e.principals.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrPrincipalNotFound) {
		e.emitAudit(ctx, auditEvent{eventType: AuditResetRequested, purpose: PurposePasswordReset, err: err})
		return nil
	}
	if err != nil {
		return err
	}

	code, err := e.CreateCode(ctx, principal.ID, PurposePasswordReset)
	switch {
	case errors.Is(err, ErrThrottleActive):
		return nil
	case err != nil:
		return err
	}

	e.emitAudit(ctx, auditEvent{eventType: AuditResetRequested, success: true, subject: principal.ID, purpose: PurposePasswordReset})
	e.notify(ctx, principal, PurposePasswordReset, code)
	return nil
}

// ResetPassword consumes a reset code, stores the new password and revokes every
// active session of the principal.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := e.accountsReady(); err != nil {
		return err
	}
	ctx = e.scope(ctx)

	principal, err := e.principals.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrPrincipalNotFound) {
		return kindError(KindCodeMismatchOrExpired, err)
	}
	if err != nil {
		return err
	}

	// Hash first so a policy rejection does not burn the code.
	digest, err := e.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := e.VerifyCode(ctx, principal.ID, PurposePasswordReset, code); err != nil {
		return err
	}
	if err := e.principals.UpdatePassword(ctx, principal.ID, digest); err != nil {
		return err
	}
	if err := e.RevokeAllForSubject(ctx, principal.ID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEvent{eventType: AuditPasswordReset, success: true, subject: principal.ID})
	return nil
}

// Me resolves the principal behind an access token.
func (e *Engine) Me(ctx context.Context, accessToken string) (Principal, error) {
	if err := e.accountsReady(); err != nil {
		return Principal{}, err
	}

	token, err := e.VerifyToken(ctx, accessToken, TokenAccess)
	if err != nil {
		return Principal{}, err
	}
	principal, err := e.principals.FindByID(e.scope(ctx), token.Subject)
	if err != nil {
		return Principal{}, err
	}
	principal.PasswordHash = ""
	return principal, nil
}

// dispatchCode creates a code for purpose and hands it to the notifier. Failures
// are logged only.
func (e *Engine) dispatchCode(ctx context.Context, p Principal, purpose Purpose) {
	code, err := e.CreateCode(ctx, p.ID, purpose)
	if err != nil {
		log.From(ctx).Warn("code_dispatch_skipped",
			slog.String("op", "credlife.dispatchCode"),
			slog.String("subject", p.ID),
			slog.String("purpose", string(purpose)),
			slog.Any("err", err),
		)
		return
	}
	e.notify(ctx, p, purpose, code)
}

func (e *Engine) notify(ctx context.Context, p Principal, purpose Purpose, code string) {
	if e.notifier == nil {
		return
	}
	policy, _ := e.config.Codes.policy(purpose)
	err := e.notifier.Send(ctx, Notification{
		Destination: p.Email,
		Purpose:     purpose,
		Code:        code,
		Data: map[string]string{
			"subject":            p.ID,
			"expires_in_seconds": strconv.Itoa(int(policy.Expiration.Seconds())),
		},
	})
	if err != nil {
		log.From(ctx).Warn("notification_failed",
			slog.String("op", "credlife.notify"),
			slog.String("subject", p.ID),
			slog.String("purpose", string(purpose)),
			slog.Any("err", err),
		)
	}
}
