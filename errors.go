package credlife

import (
	"errors"
	"fmt"
	"time"
)

// Kind enumerates the lifecycle failure classes.
type Kind int

const (
	KindMalformed Kind = iota + 1
	KindSignatureInvalid
	KindExpired
	KindTokenTypeMismatch
	KindTokenExcluded
	KindCodeMismatchOrExpired
	KindThrottleActive
	KindStoreUnavailable
	KindInvalidLength

	kindInvalidCredential Kind = -1
)

var kindNames = map[Kind]string{
	KindMalformed:             "malformed",
	KindSignatureInvalid:      "signature invalid",
	KindExpired:               "expired",
	KindTokenTypeMismatch:     "token type mismatch",
	KindTokenExcluded:         "token excluded",
	KindCodeMismatchOrExpired: "code mismatch or expired",
	KindThrottleActive:        "throttle active",
	KindStoreUnavailable:      "store unavailable",
	KindInvalidLength:         "invalid length",
	kindInvalidCredential:     "invalid credential",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Credential reports whether k is a credential-class failure. These are shown to
// outer layers as ErrInvalidCredential without naming the failed check.
func (k Kind) Credential() bool {
	switch k {
	case KindMalformed, KindSignatureInvalid, KindExpired,
		KindTokenTypeMismatch, KindTokenExcluded, KindCodeMismatchOrExpired:
		return true
	}
	return false
}

// Error is the result type of every lifecycle operation that fails.
type Error struct {
	Kind Kind
	// RetryAfter is set for KindThrottleActive.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindThrottleActive && e.RetryAfter > 0 {
		return fmt.Sprintf("credlife: %s (retry after %ds)", e.Kind, e.RetryAfterSeconds())
	}
	if e.Err != nil {
		return fmt.Sprintf("credlife: %s: %v", e.Kind, e.Err)
	}
	return "credlife: " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, ErrTokenExcluded) holds for any
// *Error of KindTokenExcluded. ErrInvalidCredential matches every credential kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == ErrInvalidCredential {
		return e.Kind.Credential()
	}
	return t.Kind == e.Kind
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Public returns the error as it should reach an untrusted caller: credential
// failures collapse to ErrInvalidCredential, throttle keeps its hint and store
// failures stay distinct.
func (e *Error) Public() error {
	switch {
	case e.Kind.Credential():
		return ErrInvalidCredential
	case e.Kind == KindThrottleActive:
		return &Error{Kind: KindThrottleActive, RetryAfter: e.RetryAfter}
	default:
		return &Error{Kind: e.Kind}
	}
}

// Public applies (*Error).Public to err when it is an *Error and returns other
// errors unchanged.
func Public(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Public()
	}
	return err
}

var (
	ErrMalformed             = &Error{Kind: KindMalformed}
	ErrSignatureInvalid      = &Error{Kind: KindSignatureInvalid}
	ErrExpired               = &Error{Kind: KindExpired}
	ErrTokenTypeMismatch     = &Error{Kind: KindTokenTypeMismatch}
	ErrTokenExcluded         = &Error{Kind: KindTokenExcluded}
	ErrCodeMismatchOrExpired = &Error{Kind: KindCodeMismatchOrExpired}
	ErrThrottleActive        = &Error{Kind: KindThrottleActive}
	ErrStoreUnavailable      = &Error{Kind: KindStoreUnavailable}
	ErrInvalidLength         = &Error{Kind: KindInvalidLength}

	// ErrInvalidCredential is the single outward credential failure.
	ErrInvalidCredential = &Error{Kind: kindInvalidCredential}
)

// Account flow errors.
var (
	// ErrInvalidCredentials is returned by Login for unknown identifiers and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the failed-login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrAccountExists is returned by Register for a taken email.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountUnverified is returned by Login when verified email is required.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrPrincipalNotFound is returned by PrincipalStore lookups that find nothing.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrEngineNotReady is returned when a required collaborator was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrAccountRequestInvalid is returned for empty or malformed account input.
	ErrAccountRequestInvalid = errors.New("invalid account request")
)

func kindError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
