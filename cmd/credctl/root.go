package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/credlife"
)

type app struct {
	configPath string
	cfg        *cliConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "credctl",
		Short: "Operate credlife tokens and one-time codes",
		Long: `credctl issues, verifies, rotates and revokes credlife token pairs and
creates or consumes one-time codes against the Redis deployment named in the
configuration. Keys are read from PEM files; generate a pair with 'credctl keygen'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["config"] == "skip" {
				return nil
			}
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file (defaults to CONFIG_PATH, then env)")

	root.AddCommand(
		newKeygenCmd(),
		newIssueCmd(a),
		newVerifyCmd(a),
		newRotateCmd(a),
		newRevokeCmd(a),
		newInspectCmd(a),
		newCodeCmd(a),
		newLoadtestCmd(),
	)
	return root
}

// engine builds an engine over the configured Redis. The returned func closes both.
func (a *app) engine(ctx context.Context) (*credlife.Engine, func(), error) {
	lvl, err := a.cfg.Log.level()
	if err != nil {
		return nil, nil, err
	}
	priv, pub, err := a.cfg.Keys.load()
	if err != nil {
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", a.cfg.Redis.Addr, err)
	}

	cfg := credlife.DefaultConfig()
	cfg.JWT.AccessTTL = a.cfg.Tokens.AccessTTL
	cfg.JWT.RefreshTTL = a.cfg.Tokens.RefreshTTL
	cfg.JWT.Issuer = a.cfg.Tokens.Issuer
	cfg.JWT.Audience = a.cfg.Tokens.Audience
	cfg.JWT.KeyID = a.cfg.Keys.KeyID

	engine, err := credlife.New().
		WithConfig(cfg).
		WithKeys(a.cfg.Keys.Method, priv, pub).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))).
		Build()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
	}, nil
}
