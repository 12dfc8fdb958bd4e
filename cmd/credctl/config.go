package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// cliConfig is loaded, in order of precedence, from the --config path, the file
// named by CONFIG_PATH, or the environment alone. Environment values always
// overlay the file.
type cliConfig struct {
	Redis  redisConfig  `yaml:"redis"`
	Keys   keysConfig   `yaml:"keys"`
	Tokens tokensConfig `yaml:"tokens"`
	Log    logConfig    `yaml:"log"`
}

type redisConfig struct {
	Addr     string `yaml:"addr" env:"CREDLIFE_REDIS_ADDR" env-default:"127.0.0.1:6379"`
	Password string `yaml:"password" env:"CREDLIFE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"CREDLIFE_REDIS_DB" env-default:"0"`
}

type keysConfig struct {
	Method         string `yaml:"method" env:"CREDLIFE_SIGNING_METHOD" env-default:"ed25519"`
	PrivateKeyFile string `yaml:"private_key_file" env:"CREDLIFE_PRIVATE_KEY_FILE"`
	PublicKeyFile  string `yaml:"public_key_file" env:"CREDLIFE_PUBLIC_KEY_FILE"`
	KeyID          string `yaml:"key_id" env:"CREDLIFE_KEY_ID"`
}

type tokensConfig struct {
	AccessTTL  time.Duration `yaml:"access_ttl" env:"CREDLIFE_ACCESS_TTL" env-default:"15m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"CREDLIFE_REFRESH_TTL" env-default:"168h"`
	Issuer     string        `yaml:"issuer" env:"CREDLIFE_ISSUER"`
	Audience   string        `yaml:"audience" env:"CREDLIFE_AUDIENCE"`
}

type logConfig struct {
	Level string `yaml:"level" env:"CREDLIFE_LOG_LEVEL" env-default:"warn"`
}

func loadConfig(path string) (*cliConfig, error) {
	var cfg cliConfig

	readFile := func(p string) (*cliConfig, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		// ReadConfig overlays the environment after parsing the file.
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH or env vars: %w", err)
	}
	return &cfg, nil
}

func (c logConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Level)
	}
	return lvl, nil
}

func (c keysConfig) load() (priv, pub []byte, err error) {
	if c.PrivateKeyFile == "" && c.PublicKeyFile == "" {
		return nil, nil, fmt.Errorf("no key configured: set keys.private_key_file or keys.public_key_file")
	}
	if c.PrivateKeyFile != "" {
		if priv, err = os.ReadFile(c.PrivateKeyFile); err != nil {
			return nil, nil, fmt.Errorf("read private key: %w", err)
		}
	}
	if c.PublicKeyFile != "" {
		if pub, err = os.ReadFile(c.PublicKeyFile); err != nil {
			return nil, nil, fmt.Errorf("read public key: %w", err)
		}
	}
	return priv, pub, nil
}
