package jwt

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names the asymmetric algorithm used to sign tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519. This is the default.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodRS256 signs with RSASSA-PKCS1-v1_5 using SHA-256.
	MethodRS256 SigningMethod = "rs256"
)

// TokenType tags a signed token with its role.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

var (
	// ErrMalformed is returned when a token cannot be parsed or carries an unusable payload.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when the signature does not verify against the public key.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when the current time is at or past the embedded expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalidClaims is returned by Sign when the requested payload is incomplete.
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Config holds signer settings. PrivateKey and PublicKey accept raw Ed25519 key bytes
// or PEM blocks; RS256 requires PEM.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// Now overrides the wall clock for issued-at, expiry, and validation.
	Now func() time.Time
}

// Attributes are the caller-owned claims embedded in a token. The engine never
// interprets them.
type Attributes struct {
	Email string            `json:"email,omitempty"`
	Role  string            `json:"role,omitempty"`
	Extra map[string]string `json:"ext,omitempty"`
}

// Clone returns a deep copy of a.
func (a Attributes) Clone() Attributes {
	out := Attributes{Email: a.Email, Role: a.Role}
	if len(a.Extra) > 0 {
		out.Extra = make(map[string]string, len(a.Extra))
		for k, v := range a.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Claims is the signed payload of every token.
type Claims struct {
	Type TokenType `json:"type"`
	Attributes
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is safe for concurrent use.
type Manager struct {
	config     Config
	method     jwt.SigningMethod
	signKey    crypto.PrivateKey
	verifyKey  crypto.PublicKey
	parseOpts  []jwt.ParserOption
	lenientOpt []jwt.ParserOption
}

// NewManager validates cfg and parses the keypair once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodEd25519
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
	case MethodRS256:
		m.method = jwt.SigningMethodRS256
		if len(cfg.PrivateKey) > 0 {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
			if err != nil {
				return nil, errors.New("invalid rsa private key")
			}
			m.signKey = priv
			m.verifyKey = &priv.PublicKey
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKey)
			if err != nil {
				return nil, errors.New("invalid rsa public key")
			}
			m.verifyKey = pub
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if m.verifyKey == nil {
		return nil, fmt.Errorf("%s requires a public or private key", cfg.SigningMethod)
	}

	base := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		base = append(base, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		base = append(base, jwt.WithAudience(cfg.Audience))
	}
	m.lenientOpt = append(append([]jwt.ParserOption{}, base...), jwt.WithoutClaimsValidation())

	m.parseOpts = append(base, jwt.WithExpirationRequired())
	if cfg.Leeway > 0 {
		m.parseOpts = append(m.parseOpts, jwt.WithLeeway(cfg.Leeway))
	}

	return m, nil
}

// CanSign reports whether a private key was configured.
func (m *Manager) CanSign() bool {
	return m != nil && m.signKey != nil
}

// Alg returns the JWS algorithm identifier written into token headers.
func (m *Manager) Alg() string {
	return m.method.Alg()
}

// Sign embeds subject, type, attributes, issued-at and expiry (now + ttl) and signs
// the result with the private key. A fresh random jti makes every token distinct.
func (m *Manager) Sign(subject string, typ TokenType, attrs Attributes, ttl time.Duration) (string, *Claims, error) {
	if strings.TrimSpace(subject) == "" {
		return "", nil, fmt.Errorf("%w: empty subject", ErrInvalidClaims)
	}
	if !typ.Valid() {
		return "", nil, fmt.Errorf("%w: unknown token type %q", ErrInvalidClaims, typ)
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("%w: non-positive ttl", ErrInvalidClaims)
	}
	if m.signKey == nil {
		return "", nil, errors.New("signer has no private key")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", nil, err
	}

	now := m.config.Now()
	claims := &Claims{
		Type:       typ,
		Attributes: attrs.Clone(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Remaining returns how much longer Verify will accept c: the time to expiry plus
// the configured leeway, or zero once that has passed. Exclusion entries must live
// at least this long.
func (m *Manager) Remaining(c *Claims) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Add(m.config.Leeway).Sub(m.config.Now())
	if d < 0 {
		return 0
	}
	return d
}

// Verify checks structure, signature and expiry, in that order. Returned errors are
// ErrMalformed, ErrSignatureInvalid, or ErrExpired.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.parseOpts)
}

// VerifySignature checks structure and signature but ignores time-based claims, so an
// expired token still yields its subject and expiry.
func (m *Manager) VerifySignature(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.lenientOpt)
}

func (m *Manager) parse(tokenStr string, opts []jwt.ParserOption) (*Claims, error) {
	if tokenStr == "" || strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	// Header and payload must decode before anything else is attempted; failures past
	// this point concern the signature segment or validation.
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &Claims{}); err != nil {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(opts...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable),
			errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrSignatureInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if !claims.Type.Valid() || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.verifyKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
