package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	defaultMinSize        = 8
)

var (
	// ErrTooShort is returned by Hash for passwords below the configured minimum.
	ErrTooShort = errors.New("password too short")
	// ErrInvalidDigest is returned when a stored digest is not a supported PHC string.
	ErrInvalidDigest = errors.New("invalid password digest")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength is the minimum plaintext length in bytes. Zero means 8.
	MinLength int
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   defaultMinSize,
	}
}

// Hasher hashes passwords with Argon2id. It is safe for concurrent use.
type Hasher struct {
	cfg Config
}

type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// NewHasher validates cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KiB", minMemoryKB)
	case cfg.Time < 1:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	case cfg.MinLength < 0:
		return nil, errors.New("password min length must be >= 0")
	}
	if cfg.MinLength == 0 {
		cfg.MinLength = defaultMinSize
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash returns a PHC-encoded Argon2id digest of plaintext with a fresh salt. Bytes
// are hashed as given, without Unicode normalization.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < h.cfg.MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	p := params{memory: h.cfg.Memory, time: h.cfg.Time, parallelism: h.cfg.Parallelism}
	key := argon2.IDKey([]byte(plaintext), salt, p.time, p.memory, p.parallelism, h.cfg.KeyLength)
	return encode(p, salt, key), nil
}

// Verify reports whether plaintext matches digest. The parameters stored in digest
// are used, so digests made under older settings keep verifying.
func (h *Hasher) Verify(digest, plaintext string) (bool, error) {
	p, salt, key, err := decode(digest)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(plaintext), salt, p.time, p.memory, p.parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

// NeedsRehash reports whether digest was produced with weaker parameters than the
// hasher's current ones.
func (h *Hasher) NeedsRehash(digest string) (bool, error) {
	p, _, key, err := decode(digest)
	if err != nil {
		return false, err
	}
	return p.memory < h.cfg.Memory ||
		p.time < h.cfg.Time ||
		p.parallelism < h.cfg.Parallelism ||
		uint32(len(key)) != h.cfg.KeyLength, nil
}

func encode(p params, salt, key []byte) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version, p.memory, p.time, p.parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

// decode parses $argon2id$v=19$m=..,t=..,p=..$salt$key.
func decode(digest string) (params, []byte, []byte, error) {
	var p params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, ErrInvalidDigest
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: unsupported version", ErrInvalidDigest)
	}

	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrInvalidDigest
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return p, nil, nil, fmt.Errorf("%w: parameter %s", ErrInvalidDigest, name)
		}
		switch name {
		case "m":
			if n < uint64(minMemoryKB) {
				return p, nil, nil, fmt.Errorf("%w: parameter m", ErrInvalidDigest)
			}
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, fmt.Errorf("%w: parameter p", ErrInvalidDigest)
			}
			p.parallelism = uint8(n)
		default:
			return p, nil, nil, fmt.Errorf("%w: parameter %s", ErrInvalidDigest, name)
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return p, nil, nil, fmt.Errorf("%w: missing parameters", ErrInvalidDigest)
	}

	salt, err := decodeSegment(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrInvalidDigest)
	}
	key, err := decodeSegment(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", ErrInvalidDigest)
	}
	return p, salt, key, nil
}

// decodeSegment accepts padded and unpadded base64.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
