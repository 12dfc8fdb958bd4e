package credlife

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credlife/internal"
	"github.com/MrEthical07/credlife/jwt"
)

// Config is the full engine configuration. It is copied at Build and treated as
// immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Store    StoreConfig
	Codes    CodesConfig
	Account  AccountConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token lifetimes and the signing keypair.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "rs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig holds the Redis key prefixes of each store.
type StoreConfig struct {
	SessionPrefix    string
	RevocationPrefix string
	CodePrefix       string
	RatePrefix       string
	// MaxSwapAttempts bounds compare-and-swap retries when replacing an active session.
	MaxSwapAttempts int
}

/*
====================================
CODE CONFIG
====================================
*/

// CodeFormat selects the alphabet of a one-time code.
type CodeFormat int

const (
	// CodeNumeric codes are Length decimal digits without a leading zero.
	CodeNumeric CodeFormat = iota
	// CodeHex codes are Length random bytes, hex encoded.
	CodeHex
)

// CodeConfig is the policy of one code purpose.
type CodeConfig struct {
	Format         CodeFormat
	Length         int
	Expiration     time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
}

// CodesConfig holds one policy per purpose.
type CodesConfig struct {
	EmailVerification CodeConfig
	PasswordReset     CodeConfig
}

func (c CodesConfig) policy(p Purpose) (CodeConfig, bool) {
	switch p {
	case PurposeEmailVerification:
		return c.EmailVerification, true
	case PurposePasswordReset:
		return c.PasswordReset, true
	}
	return CodeConfig{}, false
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig configures the account flows built on the lifecycle core.
type AccountConfig struct {
	DefaultRole           string
	RequireVerifiedLogin  bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// PasswordConfig holds Argon2id parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults applied by [New]. Keys are left empty.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodEd25519),
		},
		Store: StoreConfig{
			SessionPrefix:    "cls",
			RevocationPrefix: "clx",
			CodePrefix:       "clc",
			RatePrefix:       "cll",
			MaxSwapAttempts:  3,
		},
		Codes: CodesConfig{
			EmailVerification: CodeConfig{
				Format:         CodeNumeric,
				Length:         6,
				Expiration:     10 * time.Minute,
				ResendInterval: time.Minute,
				MaxAttempts:    5,
			},
			PasswordReset: CodeConfig{
				Format:         CodeHex,
				Length:         32,
				Expiration:     15 * time.Minute,
				ResendInterval: time.Minute,
				MaxAttempts:    5,
			},
		},
		Account: AccountConfig{
			DefaultRole:           "user",
			RequireVerifiedLogin:  false,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks lifetimes, code policies and key presence. Key parsing itself
// happens in Build.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodEd25519, jwt.MethodRS256:
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
		return errors.New("JWT requires a PrivateKey or PublicKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	if c.Store.SessionPrefix == "" || c.Store.RevocationPrefix == "" || c.Store.CodePrefix == "" {
		return errors.New("Store prefixes must be non-empty")
	}
	if c.Store.SessionPrefix == c.Store.RevocationPrefix ||
		c.Store.SessionPrefix == c.Store.CodePrefix ||
		c.Store.RevocationPrefix == c.Store.CodePrefix {
		return errors.New("Store prefixes must be distinct")
	}
	if c.Store.MaxSwapAttempts < 1 {
		return errors.New("Store MaxSwapAttempts must be >= 1")
	}

	for _, p := range []Purpose{PurposeEmailVerification, PurposePasswordReset} {
		policy, _ := c.Codes.policy(p)
		if err := validateCodeConfig(policy); err != nil {
			return fmt.Errorf("Codes %s: %w", p, err)
		}
	}

	if c.Account.MaxLoginAttempts <= 0 {
		return errors.New("Account MaxLoginAttempts must be > 0")
	}
	if c.Account.LoginCooldownDuration <= 0 {
		return errors.New("Account LoginCooldownDuration must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	return nil
}

func validateCodeConfig(c CodeConfig) error {
	if c.Expiration <= 0 {
		return errors.New("Expiration must be > 0")
	}
	if c.ResendInterval < 0 || c.ResendInterval > c.Expiration {
		return errors.New("ResendInterval must be between 0 and Expiration")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("MaxAttempts must be > 0")
	}
	switch c.Format {
	case CodeNumeric:
		if c.Length < 1 || c.Length > internal.MaxNumericCodeLength {
			return fmt.Errorf("Length must be between 1 and %d", internal.MaxNumericCodeLength)
		}
	case CodeHex:
		if c.Length < 1 {
			return errors.New("Length must be > 0")
		}
	default:
		return errors.New("unknown Format")
	}
	return nil
}
