package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or script failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "cls"

// compareAndSwapScript replaces a slot only when it still holds the expected token.
// An empty expected value means the slot must be absent.
// KEYS[1] = slot key
// ARGV[1] = expected token ("" for absent)
// ARGV[2] = next token
// ARGV[3] = ttl in milliseconds
const compareAndSwapScript = `
local current = redis.call("GET", KEYS[1])
if ARGV[1] == "" then
  if current then
    return 0
  end
elseif current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", tonumber(ARGV[3]))
return 1
`

var compareAndSwapLua = redis.NewScript(compareAndSwapScript)

// compareAndDeleteScript removes a slot only when it holds the expected token.
const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

// Store is a Redis-backed active-session store. It is safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client. prefix sets
// the key namespace; an empty prefix selects "cls".
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(subject, typ string) string {
	return s.prefix + ":" + typ + ":" + subject
}

// Get returns the current token of a slot. ok is false when the slot is empty or
// has lapsed.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, subject, typ string) (token string, ok bool, err error) {
	token, err = s.redis.Get(ctx, s.key(subject, typ)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return token, true, nil
}

// RemainingTTL returns the slot's remaining lifetime. ok is false when the slot is
// absent or carries no expiry.
//
//	Performance: 1 Redis PTTL.
func (s *Store) RemainingTTL(ctx context.Context, subject, typ string) (time.Duration, bool, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(subject, typ)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

// CompareAndSwap writes next into the slot only if the slot currently holds
// expected (or is absent, when expected is empty). swapped reports whether the
// write happened.
//
//	Performance: 1 EVALSHA.
func (s *Store) CompareAndSwap(ctx context.Context, subject, typ, expected, next string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("session ttl must be positive")
	}
	if next == "" {
		return false, errors.New("session token must not be empty")
	}
	res, err := compareAndSwapLua.Run(ctx, s.redis,
		[]string{s.key(subject, typ)},
		expected,
		next,
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// CompareAndDelete clears the slot only if it still holds expected, so a newer
// session written by a concurrent caller is never removed.
//
//	Performance: 1 EVALSHA.
func (s *Store) CompareAndDelete(ctx context.Context, subject, typ, expected string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	res, err := compareAndDeleteLua.Run(ctx, s.redis,
		[]string{s.key(subject, typ)},
		expected,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}
