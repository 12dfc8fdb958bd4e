package credlife

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memPrincipals struct {
	mu      sync.Mutex
	nextID  int
	byID    map[string]Principal
	byEmail map[string]string
}

func newMemPrincipals() *memPrincipals {
	return &memPrincipals{byID: map[string]Principal{}, byEmail: map[string]string{}}
}

func (m *memPrincipals) FindByEmail(_ context.Context, email string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return m.byID[id], nil
}

func (m *memPrincipals) FindByID(_ context.Context, id string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (m *memPrincipals) Create(_ context.Context, in CreatePrincipalInput) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[in.Email]; ok {
		return Principal{}, ErrAccountExists
	}
	m.nextID++
	p := Principal{
		ID:           "u" + strconv.Itoa(m.nextID),
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: in.PasswordHash,
	}
	m.byID[p.ID] = p
	m.byEmail[p.Email] = p.ID
	return p, nil
}

func (m *memPrincipals) UpdatePassword(_ context.Context, id, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.PasswordHash = digest
	m.byID[id] = p
	return nil
}

func (m *memPrincipals) MarkVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.Verified = true
	m.byID[id] = p
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Send(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last(t *testing.T, purpose Purpose) Notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Purpose == purpose {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", purpose)
	return Notification{}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testEnv struct {
	engine     *Engine
	mr         *miniredis.Miniredis
	rdb        *redis.Client
	clock      *testClock
	principals *memPrincipals
	notifier   *recordingNotifier
}

// advance moves the signing clock and the store clock together.
func (env *testEnv) advance(d time.Duration) {
	env.clock.Advance(d)
	env.mr.FastForward(d)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   8,
	}
	cfg.Metrics.Enabled = true
	return cfg
}

type envOption func(*Builder)

func newTestEnv(t *testing.T, cfg Config, opts ...envOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		mr:         mr,
		rdb:        rdb,
		clock:      newTestClock(),
		principals: newMemPrincipals(),
		notifier:   &recordingNotifier{},
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(env.clock.Now).
		WithPrincipalStore(env.principals).
		WithNotifier(env.notifier)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}
