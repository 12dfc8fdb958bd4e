package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// MaxNumericCodeLength keeps 10^length inside int64 range.
const MaxNumericCodeLength = 18

// ErrInvalidLength is returned for non-positive (or, for numeric codes, oversized) lengths.
var ErrInvalidLength = errors.New("invalid code length")

// NewNumericCode returns a decimal string of exactly length digits, drawn uniformly
// from [10^(length-1), 10^length - 1] with crypto/rand.
func NewNumericCode(length int) (string, error) {
	if length <= 0 || length > MaxNumericCodeLength {
		return "", ErrInvalidLength
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	high := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	span := new(big.Int).Sub(high, low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	n.Add(n, low)

	code := n.String()
	if len(code) != length {
		return "", fmt.Errorf("invalid numeric code generation length")
	}
	return code, nil
}

// NewHexCode returns byteLength random bytes hex-encoded (2*byteLength characters).
func NewHexCode(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", ErrInvalidLength
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashSecret returns the SHA-256 digest of v. Stores key and compare secrets by
// digest so raw tokens and codes never sit in Redis keys.
func HashSecret(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// HexDigest returns the hex form of HashSecret(v).
func HexDigest(v string) string {
	sum := HashSecret(v)
	return hex.EncodeToString(sum[:])
}
