package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credlife/internal"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCodeNotFound         = errors.New("verification code not found")
	ErrCodeMismatch         = errors.New("verification code mismatch")
	ErrCodeAttemptsExceeded = errors.New("verification code attempts exceeded")
	ErrCodeRedisUnavailable = errors.New("verification code redis unavailable")
)

const (
	fieldHash     = "h"
	fieldAttempts = "a"
	maxIssueRetry = 4
)

// consumeCodeLua atomically compares and consumes a code record.
// KEYS[1] = record key
// ARGV[1] = provided digest (hex)
// ARGV[2] = max attempts (int string)
//
// Returns 1 on success, or an error string: "not_found", "attempts_exceeded",
// "secret_mismatch".
var consumeCodeLua = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'h')
if not stored then
  return {err='not_found'}
end

if stored == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end

local attempts = redis.call('HINCRBY', KEYS[1], 'a', 1)
if attempts >= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return {err='attempts_exceeded'}
end
return {err='secret_mismatch'}
`)

// CodeStore persists at most one live one-time code per (subject, purpose).
type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCodeStore(redisClient redis.UniversalClient, prefix string) *CodeStore {
	if prefix == "" {
		prefix = "clc"
	}
	return &CodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CodeStore) key(subject, purpose string) string {
	return s.prefix + ":" + purpose + ":" + subject
}

// Issue stores code for (subject, purpose) with ttl, replacing any live code.
// allow is called with the remaining TTL of the current record (zero when none)
// inside a WATCH transaction; a non-nil result aborts the write and is returned
// unchanged. Concurrent issuers for the same key serialize on the watch.
func (s *CodeStore) Issue(
	ctx context.Context,
	subject, purpose, code string,
	ttl time.Duration,
	allow func(remaining time.Duration) error,
) error {
	if ttl <= 0 {
		return errors.New("code ttl must be positive")
	}
	key := s.key(subject, purpose)
	digest := internal.HexDigest(code)

	for i := 0; i < maxIssueRetry; i++ {
		var denied error

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			remaining, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if remaining < 0 {
				remaining = 0
			}
			if allow != nil {
				if denied = allow(remaining); denied != nil {
					return nil
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.HSet(ctx, key, fieldHash, digest, fieldAttempts, 0)
				pipe.PExpire(ctx, key, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
		}
		return denied
	}

	return fmt.Errorf("%w: issue contention", ErrCodeRedisUnavailable)
}

// Consume checks candidate against the live code. A match deletes the record in the
// same script so a second call cannot succeed. A mismatch increments the attempt
// counter and deletes the record once maxAttempts is reached.
func (s *CodeStore) Consume(ctx context.Context, subject, purpose, candidate string, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	digest := internal.HexDigest(candidate)

	_, err := consumeCodeLua.Run(ctx, s.redis,
		[]string{s.key(subject, purpose)},
		digest,
		maxAttempts,
	).Result()
	if err == nil {
		return nil
	}

	switch err.Error() {
	case "not_found":
		return ErrCodeNotFound
	case "attempts_exceeded":
		return ErrCodeAttemptsExceeded
	case "secret_mismatch":
		return ErrCodeMismatch
	default:
		return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
}
