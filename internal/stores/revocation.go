package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credlife/internal"
	"github.com/redis/go-redis/v9"
)

// ErrRevocationRedisUnavailable wraps Redis failures of the revocation store.
var ErrRevocationRedisUnavailable = errors.New("revocation redis unavailable")

// RevocationStore records excluded tokens until their natural expiry. Entries are
// keyed by the SHA-256 digest of the token string.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = "clx"
	}
	return &RevocationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevocationStore) key(token string) string {
	return s.prefix + ":" + internal.HexDigest(token)
}

// Exclude marks token as excluded for ttl, which must be the token's own remaining
// lifetime. A non-positive ttl writes nothing: the token is already dead.
func (s *RevocationStore) Exclude(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return nil
}

// IsExcluded reports whether token has a live exclusion entry.
func (s *RevocationStore) IsExcluded(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return n == 1, nil
}

// RemainingTTL returns the lifetime left on an exclusion entry.
func (s *RevocationStore) RemainingTTL(ctx context.Context, token string) (time.Duration, bool, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(token)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}
