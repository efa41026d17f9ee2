// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, and command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Defaults applied before any file or flag values.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultMetricsAddr     = "127.0.0.1:9100"
	DefaultLogFormat       = "json"
	DefaultSessionTTL      = time.Hour
	DefaultMaxLoginFails   = 5
	DefaultLockoutDuration = 3 * time.Minute
)

// Config holds the runtime configuration for the server process.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	DatabaseURL     string        `koanf:"database_url"`
	LogFormat       string        `koanf:"log_format"`
	SessionTTL      time.Duration `koanf:"session_ttl"`
	MaxLoginFails   int           `koanf:"max_login_failures"`
	LockoutDuration time.Duration `koanf:"lockout_duration"`
	CookieSecure    bool          `koanf:"cookie_secure"`
}

// Load builds a Config from defaults, then the YAML file at path (if path is
// non-empty), then the given flag set (if non-nil). Later sources win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := &Config{
		HTTPAddr:        DefaultHTTPAddr,
		MetricsAddr:     DefaultMetricsAddr,
		LogFormat:       DefaultLogFormat,
		SessionTTL:      DefaultSessionTTL,
		MaxLoginFails:   DefaultMaxLoginFails,
		LockoutDuration: DefaultLockoutDuration,
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	if c.SessionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("session_ttl", c.SessionTTL.String()).
			Errorf("session_ttl must be positive")
	}
	if c.MaxLoginFails < 1 {
		return oops.Code("CONFIG_INVALID").
			With("max_login_failures", c.MaxLoginFails).
			Errorf("max_login_failures must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("lockout_duration", c.LockoutDuration.String()).
			Errorf("lockout_duration must be positive")
	}
	return nil
}
