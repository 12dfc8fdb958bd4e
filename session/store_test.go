package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
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
	return NewStore(rdb, "as"), mr
}

// seed writes token into an empty slot.
func seed(t *testing.T, store *Store, subject, typ, token string, ttl time.Duration) {
	t.Helper()
	swapped, err := store.CompareAndSwap(context.Background(), subject, typ, "", token, ttl)
	if err != nil || !swapped {
		t.Fatalf("seed %s/%s: swapped=%v err=%v", subject, typ, swapped, err)
	}
}

func TestGetRemainingTTL(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	seed(t, store, "u1", "access", "tok-a", 15*time.Minute)
	if !mr.Exists("as:access:u1") {
		t.Fatal("expected slot key as:access:u1")
	}

	got, ok, err := store.Get(ctx, "u1", "access")
	if err != nil || !ok || got != "tok-a" {
		t.Fatalf("get: got=%q ok=%v err=%v", got, ok, err)
	}

	ttl, ok, err := store.RemainingTTL(ctx, "u1", "access")
	if err != nil || !ok {
		t.Fatalf("remaining ttl: ok=%v err=%v", ok, err)
	}
	if ttl <= 14*time.Minute || ttl > 15*time.Minute {
		t.Fatalf("unexpected remaining ttl %v", ttl)
	}

	mr.FastForward(15*time.Minute + time.Second)
	if _, ok, err := store.Get(ctx, "u1", "access"); err != nil || ok {
		t.Fatalf("expected lapsed slot, ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.RemainingTTL(ctx, "u1", "access"); err != nil || ok {
		t.Fatalf("expected no ttl for lapsed slot, ok=%v err=%v", ok, err)
	}
}

func TestCompareAndDeleteIdempotent(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	seed(t, store, "u1", "refresh", "tok-r", time.Hour)
	deleted, err := store.CompareAndDelete(ctx, "u1", "refresh", "tok-r")
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.CompareAndDelete(ctx, "u1", "refresh", "tok-r")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := store.Get(ctx, "u1", "refresh"); ok {
		t.Fatal("expected slot cleared")
	}
}

func TestCompareAndSwap(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	swapped, err := store.CompareAndSwap(ctx, "u1", "refresh", "", "tok-1", time.Hour)
	if err != nil || !swapped {
		t.Fatalf("expected swap into empty slot, swapped=%v err=%v", swapped, err)
	}
	swapped, err = store.CompareAndSwap(ctx, "u1", "refresh", "", "tok-x", time.Hour)
	if err != nil || swapped {
		t.Fatalf("expected occupied slot to refuse absent-swap, swapped=%v err=%v", swapped, err)
	}
	swapped, err = store.CompareAndSwap(ctx, "u1", "refresh", "tok-stale", "tok-x", time.Hour)
	if err != nil || swapped {
		t.Fatalf("expected stale expected value to fail, swapped=%v err=%v", swapped, err)
	}
	swapped, err = store.CompareAndSwap(ctx, "u1", "refresh", "tok-1", "tok-2", time.Hour)
	if err != nil || !swapped {
		t.Fatalf("expected swap, swapped=%v err=%v", swapped, err)
	}
	got, _, _ := store.Get(ctx, "u1", "refresh")
	if got != "tok-2" {
		t.Fatalf("expected tok-2, got %q", got)
	}
}

func TestCompareAndSwapSingleWinner(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	seed(t, store, "u1", "refresh", "tok-0", time.Hour)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			next := fmt.Sprintf("tok-%d", i+1)
			swapped, err := store.CompareAndSwap(ctx, "u1", "refresh", "tok-0", next, time.Hour)
			if err != nil {
				t.Errorf("cas: %v", err)
				return
			}
			if swapped {
				mu.Lock()
				winners = append(winners, next)
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	got, _, _ := store.Get(ctx, "u1", "refresh")
	if got != winners[0] {
		t.Fatalf("slot holds %q, winner wrote %q", got, winners[0])
	}
}

func TestCompareAndDeleteKeepsNewerSession(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()

	seed(t, store, "u1", "access", "tok-new", time.Hour)
	deleted, err := store.CompareAndDelete(ctx, "u1", "access", "tok-old")
	if err != nil || deleted {
		t.Fatalf("expected no delete for stale token, deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := store.Get(ctx, "u1", "access"); !ok {
		t.Fatal("newer session must survive")
	}
	deleted, err = store.CompareAndDelete(ctx, "u1", "access", "tok-new")
	if err != nil || !deleted {
		t.Fatalf("expected delete, deleted=%v err=%v", deleted, err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	mr.Close()

	if _, _, err := store.Get(ctx, "u1", "access"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from Get, got %v", err)
	}
	if _, err := store.CompareAndSwap(ctx, "u1", "access", "", "tok", time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from CompareAndSwap, got %v", err)
	}
	if _, err := store.CompareAndDelete(ctx, "u1", "access", "tok"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from CompareAndDelete, got %v", err)
	}
	if _, _, err := store.RemainingTTL(ctx, "u1", "access"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from RemainingTTL, got %v", err)
	}
}
