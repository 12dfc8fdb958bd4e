package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/credlife/jwt"
)

// TokenSigner signs and verifies tokens. Implemented by *jwt.Manager.
type TokenSigner interface {
	Sign(subject string, typ jwt.TokenType, attrs jwt.Attributes, ttl time.Duration) (string, *jwt.Claims, error)
	Verify(token string) (*jwt.Claims, error)
	VerifySignature(token string) (*jwt.Claims, error)
	// Remaining is the lifetime Verify still grants the claims, leeway included.
	Remaining(claims *jwt.Claims) time.Duration
}

// ActiveSessionStore holds the current token per (subject, type). Implemented by
// *session.Store.
type ActiveSessionStore interface {
	Get(ctx context.Context, subject, typ string) (string, bool, error)
	RemainingTTL(ctx context.Context, subject, typ string) (time.Duration, bool, error)
	CompareAndSwap(ctx context.Context, subject, typ, expected, next string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, subject, typ, expected string) (bool, error)
}

// RevocationStore records excluded tokens. Implemented by *stores.RevocationStore.
type RevocationStore interface {
	Exclude(ctx context.Context, token string, ttl time.Duration) error
	IsExcluded(ctx context.Context, token string) (bool, error)
	RemainingTTL(ctx context.Context, token string) (time.Duration, bool, error)
}

// CodeStore holds one live code per (subject, purpose). Implemented by
// *stores.CodeStore.
type CodeStore interface {
	Issue(ctx context.Context, subject, purpose, code string, ttl time.Duration, allow func(time.Duration) error) error
	Consume(ctx context.Context, subject, purpose, candidate string, maxAttempts int) error
}

// TokenDeps captures token lifecycle dependencies.
type TokenDeps struct {
	Signer      TokenSigner
	Sessions    ActiveSessionStore
	Revocations RevocationStore
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	// Leeway extends slot lifetimes to match how long Verify accepts a token.
	Leeway time.Duration
	Now    func() time.Time
	// MaxSwapAttempts bounds compare-and-swap retries per slot during issue.
	MaxSwapAttempts int
}

// CodeDeps captures one-time code dependencies.
type CodeDeps struct {
	Store          CodeStore
	NewNumericCode func(length int) (string, error)
	NewHexCode     func(byteLength int) (string, error)
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Tokens TokenDeps
	Codes  CodeDeps
}

func (d TokenDeps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// ttlFor is the active slot lifetime for typ.
func (d TokenDeps) ttlFor(typ jwt.TokenType) time.Duration {
	if typ == jwt.TypeRefresh {
		return d.RefreshTTL + d.Leeway
	}
	return d.AccessTTL + d.Leeway
}

func (d TokenDeps) swapAttempts() int {
	if d.MaxSwapAttempts <= 0 {
		return 3
	}
	return d.MaxSwapAttempts
}
