package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/credlife/internal/log"
	"github.com/MrEthical07/credlife/jwt"
)

// TokenFailureKind classifies token flow failures for root-level mapping.
type TokenFailureKind int

const (
	TokenFailureNone TokenFailureKind = iota
	TokenFailureMalformed
	TokenFailureSignatureInvalid
	TokenFailureExpired
	TokenFailureTypeMismatch
	TokenFailureExcluded
	TokenFailureStoreUnavailable
	TokenFailureSign
)

// ErrSlotContention is returned when a slot keeps changing under compare-and-swap
// for more than the configured number of attempts.
var ErrSlotContention = errors.New("active session slot contention")

// SessionResult carries an issued token pair or failure metadata.
type SessionResult struct {
	Failure       TokenFailureKind
	Err           error
	Subject       string
	AccessToken   string
	RefreshToken  string
	AccessClaims  *jwt.Claims
	RefreshClaims *jwt.Claims
}

// VerifyResult carries verified claims or failure metadata.
type VerifyResult struct {
	Failure TokenFailureKind
	Err     error
	Claims  *jwt.Claims
}

// InspectResult describes the store state behind a token. It is a snapshot for
// operators; VerifyToken stays the authority on acceptance.
type InspectResult struct {
	Failure TokenFailureKind
	Err     error
	Claims  *jwt.Claims
	// Remaining is how much longer the signature check would accept the token.
	Remaining    time.Duration
	Excluded     bool
	ExclusionTTL time.Duration
	// Active reports whether the token still occupies its subject's slot.
	Active  bool
	SlotTTL time.Duration
}

// RevokeResult reports what a revoke call excluded.
type RevokeResult struct {
	Failure  TokenFailureKind
	Err      error
	Subject  string
	Excluded int
	Skipped  int
}

func storeFailure(err error) TokenFailureKind {
	if err == nil {
		return TokenFailureNone
	}
	return TokenFailureStoreUnavailable
}

func classifyVerifyError(err error) TokenFailureKind {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return TokenFailureExpired
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return TokenFailureSignatureInvalid
	default:
		return TokenFailureMalformed
	}
}

// RunIssueSession signs a fresh access/refresh pair for subject and installs each
// token as the active one for its type, excluding whatever it replaces.
func RunIssueSession(ctx context.Context, subject string, attrs jwt.Attributes, deps TokenDeps) SessionResult {
	const op = "flows.RunIssueSession"

	access, accessClaims, err := deps.Signer.Sign(subject, jwt.TypeAccess, attrs, deps.AccessTTL)
	if err != nil {
		return SessionResult{Failure: TokenFailureSign, Err: err, Subject: subject}
	}
	refresh, refreshClaims, err := deps.Signer.Sign(subject, jwt.TypeRefresh, attrs, deps.RefreshTTL)
	if err != nil {
		return SessionResult{Failure: TokenFailureSign, Err: err, Subject: subject}
	}

	for _, slot := range []struct {
		typ   jwt.TokenType
		token string
	}{
		{jwt.TypeAccess, access},
		{jwt.TypeRefresh, refresh},
	} {
		if err := replaceSlot(ctx, deps, subject, slot.typ, slot.token); err != nil {
			log.From(ctx).Warn("session_slot_replace_failed",
				slog.String("op", op),
				slog.String("subject", subject),
				slog.String("type", string(slot.typ)),
				slog.Any("err", err),
			)
			return SessionResult{Failure: TokenFailureStoreUnavailable, Err: err, Subject: subject}
		}
	}

	return SessionResult{
		Subject:       subject,
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}
}

// replaceSlot installs next as the active token of (subject, typ). The current
// occupant is excluded with its remaining lifetime before the swap. A lost swap
// re-reads the slot and tries again, so repeated calls converge on exactly one
// active token.
func replaceSlot(ctx context.Context, deps TokenDeps, subject string, typ jwt.TokenType, next string) error {
	for i := 0; i < deps.swapAttempts(); i++ {
		current, ok, err := deps.Sessions.Get(ctx, subject, string(typ))
		if err != nil {
			return err
		}
		if ok {
			if err := excludeActive(ctx, deps, subject, typ, current); err != nil {
				return err
			}
		}

		swapped, err := deps.Sessions.CompareAndSwap(ctx, subject, string(typ), current, next, deps.ttlFor(typ))
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return ErrSlotContention
}

// excludeActive excludes a token read from an active slot. The exclusion TTL is the
// token's own remaining lifetime plus verify leeway; when the stored value cannot be decoded the slot's
// remaining TTL stands in, since slots are written with the token lifetime.
func excludeActive(ctx context.Context, deps TokenDeps, subject string, typ jwt.TokenType, token string) error {
	var ttl time.Duration
	if claims, err := deps.Signer.VerifySignature(token); err == nil {
		ttl = deps.Signer.Remaining(claims)
	} else {
		remaining, ok, ttlErr := deps.Sessions.RemainingTTL(ctx, subject, string(typ))
		if ttlErr != nil {
			return ttlErr
		}
		if ok {
			ttl = remaining
		}
	}
	return deps.Revocations.Exclude(ctx, token, ttl)
}

// RunVerifyToken checks signature and expiry, the type tag, then the revocation
// store. A revocation store error rejects the token.
func RunVerifyToken(ctx context.Context, token string, expected jwt.TokenType, deps TokenDeps) VerifyResult {
	claims, err := deps.Signer.Verify(token)
	if err != nil {
		return VerifyResult{Failure: classifyVerifyError(err), Err: err}
	}
	if claims.Type != expected {
		return VerifyResult{
			Failure: TokenFailureTypeMismatch,
			Err:     fmt.Errorf("token type %q, expected %q", claims.Type, expected),
		}
	}

	excluded, err := deps.Revocations.IsExcluded(ctx, token)
	if err != nil {
		log.From(ctx).Error("revocation_lookup_failed",
			slog.String("op", "flows.RunVerifyToken"),
			slog.Any("err", err),
		)
		return VerifyResult{Failure: TokenFailureStoreUnavailable, Err: err}
	}
	if excluded {
		return VerifyResult{Failure: TokenFailureExcluded, Err: errors.New("token excluded")}
	}

	return VerifyResult{Claims: claims}
}

// RunRotateSession consumes a refresh token and issues a new pair for the same
// subject and attributes. The presented refresh token is excluded first, then the
// refresh slot is swapped only if it still holds the presented token; a caller that
// loses that swap gets TokenFailureExcluded.
func RunRotateSession(ctx context.Context, refreshToken string, deps TokenDeps) SessionResult {
	const op = "flows.RunRotateSession"

	verified := RunVerifyToken(ctx, refreshToken, jwt.TypeRefresh, deps)
	if verified.Failure != TokenFailureNone {
		return SessionResult{Failure: verified.Failure, Err: verified.Err}
	}
	claims := verified.Claims
	subject := claims.Subject

	access, accessClaims, err := deps.Signer.Sign(subject, jwt.TypeAccess, claims.Attributes, deps.AccessTTL)
	if err != nil {
		return SessionResult{Failure: TokenFailureSign, Err: err, Subject: subject}
	}
	refresh, refreshClaims, err := deps.Signer.Sign(subject, jwt.TypeRefresh, claims.Attributes, deps.RefreshTTL)
	if err != nil {
		return SessionResult{Failure: TokenFailureSign, Err: err, Subject: subject}
	}

	if err := deps.Revocations.Exclude(ctx, refreshToken, deps.Signer.Remaining(claims)); err != nil {
		return SessionResult{Failure: TokenFailureStoreUnavailable, Err: err, Subject: subject}
	}

	swapped, err := deps.Sessions.CompareAndSwap(ctx, subject, string(jwt.TypeRefresh), refreshToken, refresh, deps.ttlFor(jwt.TypeRefresh))
	if err != nil {
		return SessionResult{Failure: TokenFailureStoreUnavailable, Err: err, Subject: subject}
	}
	if !swapped {
		log.From(ctx).Warn("refresh_rotation_lost",
			slog.String("op", op),
			slog.String("subject", subject),
		)
		return SessionResult{
			Failure: TokenFailureExcluded,
			Err:     errors.New("refresh token no longer active"),
			Subject: subject,
		}
	}

	if err := replaceSlot(ctx, deps, subject, jwt.TypeAccess, access); err != nil {
		return SessionResult{Failure: TokenFailureStoreUnavailable, Err: err, Subject: subject}
	}

	return SessionResult{
		Subject:       subject,
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}
}

// RunRevokeSession excludes each presented token for its remaining lifetime and
// clears its active slot if the slot still holds it. Tokens whose signature does not
// verify are already invalid and are skipped without error. Expiry is ignored when
// decoding.
func RunRevokeSession(ctx context.Context, tokens []string, deps TokenDeps) RevokeResult {
	var res RevokeResult

	for _, token := range tokens {
		if token == "" {
			continue
		}
		claims, err := deps.Signer.VerifySignature(token)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Subject = claims.Subject

		if err := deps.Revocations.Exclude(ctx, token, deps.Signer.Remaining(claims)); err != nil {
			res.Failure, res.Err = storeFailure(err), err
			return res
		}
		if _, err := deps.Sessions.CompareAndDelete(ctx, claims.Subject, string(claims.Type), token); err != nil {
			res.Failure, res.Err = storeFailure(err), err
			return res
		}
		res.Excluded++
	}

	return res
}

// RunRevokeAll excludes and clears both active slots of subject.
func RunRevokeAll(ctx context.Context, subject string, deps TokenDeps) RevokeResult {
	res := RevokeResult{Subject: subject}

	for _, typ := range []jwt.TokenType{jwt.TypeAccess, jwt.TypeRefresh} {
		current, ok, err := deps.Sessions.Get(ctx, subject, string(typ))
		if err != nil {
			res.Failure, res.Err = storeFailure(err), err
			return res
		}
		if !ok {
			continue
		}
		if err := excludeActive(ctx, deps, subject, typ, current); err != nil {
			res.Failure, res.Err = storeFailure(err), err
			return res
		}
		if _, err := deps.Sessions.CompareAndDelete(ctx, subject, string(typ), current); err != nil {
			res.Failure, res.Err = storeFailure(err), err
			return res
		}
		res.Excluded++
	}

	return res
}

// RunInspectToken reads the exclusion entry and active slot for a token whose
// signature verifies. Expired tokens are inspected too.
func RunInspectToken(ctx context.Context, token string, deps TokenDeps) InspectResult {
	claims, err := deps.Signer.VerifySignature(token)
	if err != nil {
		return InspectResult{Failure: classifyVerifyError(err), Err: err}
	}
	res := InspectResult{Claims: claims, Remaining: deps.Signer.Remaining(claims)}

	res.ExclusionTTL, res.Excluded, err = deps.Revocations.RemainingTTL(ctx, token)
	if err != nil {
		res.Failure, res.Err = storeFailure(err), err
		return res
	}

	current, ok, err := deps.Sessions.Get(ctx, claims.Subject, string(claims.Type))
	if err != nil {
		res.Failure, res.Err = storeFailure(err), err
		return res
	}
	if ok && current == token {
		res.Active = true
		res.SlotTTL, _, err = deps.Sessions.RemainingTTL(ctx, claims.Subject, string(claims.Type))
		if err != nil {
			res.Failure, res.Err = storeFailure(err), err
			return res
		}
	}
	return res
}
