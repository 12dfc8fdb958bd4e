package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errThrottled = errors.New("throttled")

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func TestRevocationExcludeUsesGivenTTL(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()

	if err := store.Exclude(ctx, "tok-1", 90*time.Second); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	excluded, err := store.IsExcluded(ctx, "tok-1")
	if err != nil || !excluded {
		t.Fatalf("expected excluded, got %v err=%v", excluded, err)
	}
	ttl, ok, err := store.RemainingTTL(ctx, "tok-1")
	if err != nil || !ok || ttl > 90*time.Second || ttl < 89*time.Second {
		t.Fatalf("unexpected ttl %v ok=%v err=%v", ttl, ok, err)
	}

	mr.FastForward(91 * time.Second)
	excluded, err = store.IsExcluded(ctx, "tok-1")
	if err != nil || excluded {
		t.Fatalf("expected entry to self-clean, got %v err=%v", excluded, err)
	}
}

func TestRevocationSkipsDeadTokens(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewRevocationStore(rdb, "")
	ctx := context.Background()

	if err := store.Exclude(ctx, "tok-dead", 0); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	if err := store.Exclude(ctx, "tok-dead", -time.Second); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys written, got %v", mr.Keys())
	}
}

func TestRevocationKeysByDigest(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewRevocationStore(rdb, "x")
	ctx := context.Background()

	if err := store.Exclude(ctx, "header.payload.signature", time.Minute); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 || len(keys[0]) != len("x:")+64 {
		t.Fatalf("expected one digest key, got %v", keys)
	}
	if excluded, _ := store.IsExcluded(ctx, "header.payload.signature"); !excluded {
		t.Fatal("expected entry under digest key")
	}
}

func TestCodeIssueConsumeOnce(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	if err := store.Issue(ctx, "u1", "email-verification", "123456", 10*time.Minute, nil); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !mr.Exists("clc:email-verification:u1") {
		t.Fatal("expected record key")
	}
	if got := mr.HGet("clc:email-verification:u1", "h"); got == "123456" || got == "" {
		t.Fatalf("expected digest in record, got %q", got)
	}

	if err := store.Consume(ctx, "u1", "email-verification", "123456", 5); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := store.Consume(ctx, "u1", "email-verification", "123456", 5); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestCodeIssueSupersedes(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	_ = store.Issue(ctx, "u1", "password-reset", "aaaa", time.Minute, nil)
	_ = store.Issue(ctx, "u1", "password-reset", "bbbb", time.Minute, nil)

	if err := store.Consume(ctx, "u1", "password-reset", "aaaa", 5); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected superseded code to mismatch, got %v", err)
	}
	if err := store.Consume(ctx, "u1", "password-reset", "bbbb", 5); err != nil {
		t.Fatalf("expected latest code to verify: %v", err)
	}
}

func TestCodeAttemptsExhaustDeletesRecord(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	_ = store.Issue(ctx, "u1", "email-verification", "123456", time.Minute, nil)
	for i := 0; i < 2; i++ {
		if err := store.Consume(ctx, "u1", "email-verification", "000000", 3); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("attempt %d: expected mismatch, got %v", i, err)
		}
	}
	if got := mr.HGet("clc:email-verification:u1", fieldAttempts); got != "2" {
		t.Fatalf("expected 2 recorded attempts, got %q", got)
	}
	if err := store.Consume(ctx, "u1", "email-verification", "000000", 3); !errors.Is(err, ErrCodeAttemptsExceeded) {
		t.Fatalf("expected attempts exceeded, got %v", err)
	}
	if mr.Exists("clc:email-verification:u1") {
		t.Fatal("expected record deleted after budget exhausted")
	}
	if err := store.Consume(ctx, "u1", "email-verification", "123456", 3); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected correct code to fail after lockout, got %v", err)
	}
}

func TestCodeMismatchKeepsTTL(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	_ = store.Issue(ctx, "u1", "email-verification", "123456", time.Minute, nil)
	_ = store.Consume(ctx, "u1", "email-verification", "999999", 5)

	if ttl := mr.TTL("clc:email-verification:u1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl preserved, got %v", ttl)
	}
}

func TestCodeIssueAllowSeesRemainingTTL(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	var seen time.Duration
	allow := func(remaining time.Duration) error {
		seen = remaining
		if remaining > 9*time.Minute {
			return errThrottled
		}
		return nil
	}

	if err := store.Issue(ctx, "u1", "email-verification", "111111", 10*time.Minute, allow); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if seen != 0 {
		t.Fatalf("expected zero remaining for absent record, got %v", seen)
	}
	if err := store.Issue(ctx, "u1", "email-verification", "222222", 10*time.Minute, allow); !errors.Is(err, errThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}
	if err := store.Consume(ctx, "u1", "email-verification", "111111", 5); err != nil {
		t.Fatalf("denied issue must not replace the live code: %v", err)
	}

	_ = store.Issue(ctx, "u1", "email-verification", "333333", 10*time.Minute, nil)
	mr.FastForward(61 * time.Second)
	if err := store.Issue(ctx, "u1", "email-verification", "444444", 10*time.Minute, allow); err != nil {
		t.Fatalf("expected issue after cooldown: %v", err)
	}
}

func TestCodeConcurrentIssueSingleWinner(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	ctx := context.Background()

	allow := func(remaining time.Duration) error {
		if remaining > 0 {
			return errThrottled
		}
		return nil
	}

	const workers = 12
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := store.Issue(ctx, "u1", "email-verification", "123456", time.Minute, allow)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, errThrottled) && !errors.Is(err, ErrCodeRedisUnavailable) {
				t.Errorf("unexpected issue error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one issuance, got %d", wins)
	}
}

func TestCodeStoreUnavailable(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewCodeStore(rdb, "")
	mr.Close()

	err := store.Consume(context.Background(), "u1", "email-verification", "123456", 5)
	if !errors.Is(err, ErrCodeRedisUnavailable) {
		t.Fatalf("expected ErrCodeRedisUnavailable, got %v", err)
	}
}
