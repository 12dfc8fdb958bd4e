package credlife

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/credlife/internal"
	internalaudit "github.com/MrEthical07/credlife/internal/audit"
	"github.com/MrEthical07/credlife/internal/flows"
	"github.com/MrEthical07/credlife/internal/rate"
	"github.com/MrEthical07/credlife/internal/stores"
	"github.com/MrEthical07/credlife/jwt"
	"github.com/MrEthical07/credlife/password"
	"github.com/MrEthical07/credlife/session"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger
	now    func() time.Time

	principals PrincipalStore
	hasher     PasswordHasher
	notifier   Notifier
	auditSink  AuditSink

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithKeys sets the signing keypair. Either half may be nil.
func (b *Builder) WithKeys(method string, privateKey, publicKey []byte) *Builder {
	b.config.JWT.SigningMethod = method
	b.config.JWT.PrivateKey = cloneBytes(privateKey)
	b.config.JWT.PublicKey = cloneBytes(publicKey)
	return b
}

// WithRedis sets the client backing every store. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock used for signing and exclusion TTLs.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithPrincipalStore enables the account flows.
func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.principals = store
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(hasher PasswordHasher) *Builder {
	b.hasher = hasher
	return b
}

// WithNotifier sets where one-time codes are dispatched.
func (b *Builder) WithNotifier(notifier Notifier) *Builder {
	b.notifier = notifier
	return b
}

// WithAuditSink sets the audit sink. A non-nil sink enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, parses the keypair and wires the stores.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if b.auditSink != nil {
		cfg.Audit.Enabled = true
		if cfg.Audit.BufferSize <= 0 {
			cfg.Audit.BufferSize = defaultConfig().Audit.BufferSize
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	signer, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := password.NewHasher(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	sessions := session.NewStore(b.redis, cfg.Store.SessionPrefix)
	revocations := stores.NewRevocationStore(b.redis, cfg.Store.RevocationPrefix)
	codes := stores.NewCodeStore(b.redis, cfg.Store.CodePrefix)

	engine := &Engine{
		config:     cfg,
		signer:     signer,
		principals: b.principals,
		hasher:     hasher,
		notifier:   b.notifier,
		logger:     logger,
		now:        now,
		metrics:    NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		rateLimiter: rate.New(b.redis, rate.Config{
			Prefix:                cfg.Store.RatePrefix,
			EnableIPThrottle:      cfg.Account.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Account.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Account.LoginCooldownDuration,
		}),
		deps: flows.Deps{
			Tokens: flows.TokenDeps{
				Signer:          signer,
				Sessions:        sessions,
				Revocations:     revocations,
				AccessTTL:       cfg.JWT.AccessTTL,
				RefreshTTL:      cfg.JWT.RefreshTTL,
				Leeway:          cfg.JWT.Leeway,
				Now:             now,
				MaxSwapAttempts: cfg.Store.MaxSwapAttempts,
			},
			Codes: flows.CodeDeps{
				Store:          codes,
				NewNumericCode: internal.NewNumericCode,
				NewHexCode:     internal.NewHexCode,
			},
		},
	}

	b.built = true
	return engine, nil
}
