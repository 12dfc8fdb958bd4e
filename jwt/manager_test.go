package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newEdManager(t *testing.T, clock *fakeClock) (*Manager, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	cfg := Config{SigningMethod: MethodEd25519, PrivateKey: priv, Issuer: "credlife"}
	if clock != nil {
		cfg.Now = clock.Now
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, priv
}

func TestSignVerifyRoundTrip(t *testing.T) {
	m, _ := newEdManager(t, nil)

	token, issued, err := m.Sign("u1", TypeAccess, Attributes{Email: "u1@example.com", Role: "member"}, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u1" || claims.Type != TypeAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Email != "u1@example.com" || claims.Role != "member" {
		t.Fatalf("attributes not round-tripped: %+v", claims.Attributes)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("expected jti %q, got %q", issued.ID, claims.ID)
	}
}

func TestSignProducesDistinctTokens(t *testing.T) {
	m, _ := newEdManager(t, nil)
	a, _, err := m.Sign("u1", TypeRefresh, Attributes{}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	b, _, err := m.Sign("u1", TypeRefresh, Attributes{}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens for identical inputs")
	}
}

func TestSignRejectsIncompletePayload(t *testing.T) {
	m, _ := newEdManager(t, nil)

	cases := []struct {
		name    string
		subject string
		typ     TokenType
		ttl     time.Duration
	}{
		{"empty subject", " ", TypeAccess, time.Minute},
		{"unknown type", "u1", TokenType("session"), time.Minute},
		{"zero ttl", "u1", TypeAccess, 0},
	}
	for _, tc := range cases {
		if _, _, err := m.Sign(tc.subject, tc.typ, Attributes{}, tc.ttl); !errors.Is(err, ErrInvalidClaims) {
			t.Fatalf("%s: expected ErrInvalidClaims, got %v", tc.name, err)
		}
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m, _ := newEdManager(t, clock)

	access, _, err := m.Sign("u1", TypeAccess, Attributes{}, 900*time.Second)
	if err != nil {
		t.Fatalf("sign access: %v", err)
	}
	refresh, _, err := m.Sign("u1", TypeRefresh, Attributes{}, 604800*time.Second)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}

	clock.Advance(899 * time.Second)
	if _, err := m.Verify(access); err != nil {
		t.Fatalf("expected access valid before expiry: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := m.Verify(access); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at exp, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := m.Verify(access); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after 901s, got %v", err)
	}
	if _, err := m.Verify(refresh); err != nil {
		t.Fatalf("expected refresh still valid: %v", err)
	}
}

func TestVerifySignatureIgnoresExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m, _ := newEdManager(t, clock)

	token, _, err := m.Sign("u1", TypeAccess, Attributes{}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	clock.Advance(time.Hour)

	claims, err := m.VerifySignature(token)
	if err != nil {
		t.Fatalf("expected signature-only verification to succeed: %v", err)
	}
	if got := m.Remaining(claims); got != 0 {
		t.Fatalf("expected zero remaining lifetime, got %v", got)
	}
}

func TestManagerRemainingIncludesLeeway(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	m, err := NewManager(Config{PrivateKey: priv, Leeway: time.Minute, Now: clock.Now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, claims, err := m.Sign("u1", TypeAccess, Attributes{}, 900*time.Second)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := m.Remaining(claims); got != 960*time.Second {
		t.Fatalf("remaining at issue = %v, want 960s", got)
	}

	clock.Advance(930 * time.Second)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token valid inside leeway: %v", err)
	}
	if got := m.Remaining(claims); got != 30*time.Second {
		t.Fatalf("remaining inside leeway = %v, want 30s", got)
	}

	clock.Advance(30 * time.Second)
	if got := m.Remaining(claims); got != 0 {
		t.Fatalf("remaining after leeway = %v, want 0", got)
	}
}

func flipSignatureByte(t *testing.T, token string, i int) string {
	t.Helper()
	parts := strings.Split(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[i%len(sig)] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}

func TestVerifyFlippedSignatureByte(t *testing.T) {
	m, _ := newEdManager(t, nil)

	for _, attrs := range []Attributes{{}, {Email: "x@example.com"}, {Role: "admin", Extra: map[string]string{"k": "v"}}} {
		token, _, err := m.Sign("u1", TypeAccess, attrs, time.Minute)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		for i := 0; i < ed25519.SignatureSize; i += 7 {
			if _, err := m.Verify(flipSignatureByte(t, token, i)); !errors.Is(err, ErrSignatureInvalid) {
				t.Fatalf("byte %d: expected ErrSignatureInvalid, got %v", i, err)
			}
		}
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	m, _ := newEdManager(t, nil)
	for _, input := range []string{"", "abc", "a.b", "a.b.c", "!!!.???.***"} {
		if _, err := m.Verify(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestVerifyRejectsForeignKeyAndAlgorithm(t *testing.T) {
	m, _ := newEdManager(t, nil)
	other, _ := newEdManager(t, nil)

	foreign, _, err := other.Sign("u1", TypeAccess, Attributes{}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(foreign); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected foreign key rejection, got %v", err)
	}

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "credlife",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	hs, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign hs256: %v", err)
	}
	if _, err := m.Verify(hs); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected hs256 rejection, got %v", err)
	}
}

func TestVerifyRejectsUntypedPayload(t *testing.T) {
	m, priv := newEdManager(t, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "credlife",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing type, got %v", err)
	}
}

func TestRS256RoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	signer, err := NewManager(Config{SigningMethod: MethodRS256, PrivateKey: privPEM})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewManager(Config{SigningMethod: MethodRS256, PublicKey: pubPEM})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if verifier.CanSign() {
		t.Fatal("verifier without private key must not sign")
	}

	token, _, err := signer.Sign("u1", TypeRefresh, Attributes{}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Type != TypeRefresh || verifier.Alg() != "RS256" {
		t.Fatalf("unexpected claims or alg: %+v %s", claims, verifier.Alg())
	}
}

func TestNewManagerRejectsMissingKeys(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected error without keys")
	}
	if _, err := NewManager(Config{SigningMethod: "hs256", PrivateKey: []byte("x")}); err == nil {
		t.Fatal("expected symmetric method to be rejected")
	}
}
