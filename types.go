package credlife

import (
	"context"
	"time"

	"github.com/MrEthical07/credlife/jwt"
)

// TokenType tags a session token as access or refresh.
type TokenType = jwt.TokenType

const (
	TokenAccess  = jwt.TypeAccess
	TokenRefresh = jwt.TypeRefresh
)

// Attributes are caller-owned claims embedded in every token of a session.
type Attributes = jwt.Attributes

// Purpose names what a one-time code is for. At most one live code exists per
// (subject, purpose).
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
)

// Valid reports whether p is a configured purpose.
func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

// TokenPair is returned by IssueSession and RotateSession.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Token is the verified view of a token string.
type Token struct {
	ID         string
	Subject    string
	Type       TokenType
	Attributes Attributes
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

func tokenFromClaims(c *jwt.Claims) *Token {
	t := &Token{
		ID:         c.ID,
		Subject:    c.Subject,
		Type:       c.Type,
		Attributes: c.Attributes.Clone(),
	}
	if c.IssuedAt != nil {
		t.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		t.ExpiresAt = c.ExpiresAt.Time
	}
	return t
}

// TokenStatus is an operator view of a token and the store entries behind it.
type TokenStatus struct {
	Token *Token
	// Remaining is the lifetime left before expiry checks reject the token.
	Remaining    time.Duration
	Excluded     bool
	ExclusionTTL time.Duration
	Active       bool
	SlotTTL      time.Duration
}

// Principal is the account record the engine reads from a [PrincipalStore].
type Principal struct {
	ID           string
	Email        string
	Role         string
	PasswordHash string
	Verified     bool
}

// Attributes returns the claims embedded in this principal's tokens.
func (p Principal) Attributes() Attributes {
	return Attributes{Email: p.Email, Role: p.Role}
}

// CreatePrincipalInput is passed to [PrincipalStore.Create].
type CreatePrincipalInput struct {
	Email        string
	Role         string
	PasswordHash string
}

// PrincipalStore is the durable account store. Lookups that find nothing return
// ErrPrincipalNotFound.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, email string) (Principal, error)
	FindByID(ctx context.Context, id string) (Principal, error)
	Create(ctx context.Context, input CreatePrincipalInput) (Principal, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkVerified(ctx context.Context, id string) error
}

// PasswordHasher hashes and verifies passwords. Implemented by *password.Hasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(digest, plaintext string) (bool, error)
}

// Notification is handed to a [Notifier]. Code is the plain one-time code.
type Notification struct {
	Destination string
	Purpose     Purpose
	Code        string
	Data        map[string]string
}

// Notifier dispatches one-time codes. Delivery is fire-and-forget: the engine logs
// a failed Send and does not retry.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
	Role     string
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	Principal Principal
	Tokens    TokenPair
}
