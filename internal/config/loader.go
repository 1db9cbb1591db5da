package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FANOUT_CONFIG is set
//  3. env (prefix FANOUT_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("FANOUT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: FANOUT_ADDR, FANOUT_TOPIC, ...
	// Map env keys like FANOUT_WEBHOOK_GROUP_ID -> webhook_group_id.
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("FANOUT_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "fanout_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers must not be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic must not be empty")
	}
	if cfg.WebhookGroupID == cfg.RealtimeGroupID {
		return nil, errors.New("webhook and realtime consumer groups must differ")
	}
	return &cfg, nil
}
