// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authcore settings from defaults, an optional YAML file,
// the environment, and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/xdg"
)

// Authentication strategies selectable with AUTH_STRATEGY.
const (
	StrategyNone       = "none"
	StrategyBasic      = "basic"
	StrategySession    = "session"
	StrategySessionExp = "session_exp"
	StrategySessionDB  = "session_db"
)

// Storage backends selectable with SESSION_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Keys, shared by the YAML file and the environment (upper-cased).
const (
	KeyAuthStrategy    = "auth_strategy"
	KeySessionBackend  = "session_backend"
	KeyCookieName      = "session_cookie_name"
	KeySessionDuration = "session_duration_seconds"
	KeyResetTokenTTL   = "reset_token_ttl_seconds"
	KeyDatabaseURL     = "database_url"
	KeyListenAddr      = "listen_addr"
	KeyMetricsAddr     = "metrics_addr"
	KeyLogFormat       = "log_format"
	KeyLogLevel        = "log_level"
	KeyExemptPaths     = "auth_exempt_paths"
)

var knownKeys = []string{
	KeyAuthStrategy, KeySessionBackend, KeyCookieName, KeySessionDuration,
	KeyResetTokenTTL, KeyDatabaseURL, KeyListenAddr, KeyMetricsAddr,
	KeyLogFormat, KeyLogLevel, KeyExemptPaths,
}

// Default values.
const (
	DefaultListenAddr  = "127.0.0.1:5000"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
)

// DefaultExemptPaths are the routes reachable without credentials.
var DefaultExemptPaths = []string{"/", "/users/", "/sessions/", "/reset_password/"}

// Config holds the resolved settings.
type Config struct {
	AuthStrategy    string
	SessionBackend  string
	CookieName      string
	SessionDuration time.Duration
	ResetTokenTTL   time.Duration
	DatabaseURL     string
	ListenAddr      string
	MetricsAddr     string
	LogFormat       string
	LogLevel        string
	ExemptPaths     []string
}

// RegisterFlags defines the command-line flags Load reads. Flag defaults are
// the lowest-precedence layer.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("auth-strategy", StrategySession, "authentication strategy (none, basic, session, session_exp, session_db)")
	flags.String("session-backend", BackendMemory, "principal and session storage (memory or postgres)")
	flags.String("session-cookie-name", auth.DefaultSessionCookieName, "name of the session cookie")
	flags.Int64("session-duration-seconds", 0, "session lifetime in seconds (0 = never expires)")
	flags.Int64("reset-token-ttl-seconds", 0, "reset token lifetime in seconds (0 = unbounded)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("listen-addr", DefaultListenAddr, "API listen address")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringSlice("auth-exempt-paths", DefaultExemptPaths, "paths that skip authentication; a trailing * matches by prefix")
}

// Load resolves the configuration. An empty path reads the XDG config file if
// it exists; an explicit path must exist.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	optional := path == ""
	if optional {
		path = xdg.ConfigFile()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("source", "environment").
			Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	return fromKoanf(k), nil
}

// envValue maps recognized environment variables to keys and drops the rest.
func envValue(name, value string) (string, any) {
	key := strings.ToLower(name)
	if !slices.Contains(knownKeys, key) {
		return "", nil
	}
	if key == KeyExemptPaths {
		return key, splitList(value)
	}
	return key, value
}

func flagValue(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	}
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fromKoanf(k *koanf.Koanf) *Config {
	cfg := &Config{
		AuthStrategy:    strings.ToLower(k.String(KeyAuthStrategy)),
		SessionBackend:  strings.ToLower(k.String(KeySessionBackend)),
		CookieName:      k.String(KeyCookieName),
		SessionDuration: seconds(k.Int64(KeySessionDuration)),
		ResetTokenTTL:   seconds(k.Int64(KeyResetTokenTTL)),
		DatabaseURL:     k.String(KeyDatabaseURL),
		ListenAddr:      k.String(KeyListenAddr),
		MetricsAddr:     k.String(KeyMetricsAddr),
		LogFormat:       k.String(KeyLogFormat),
		LogLevel:        k.String(KeyLogLevel),
		ExemptPaths:     k.Strings(KeyExemptPaths),
	}
	if cfg.AuthStrategy == "" {
		cfg.AuthStrategy = StrategySession
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendMemory
	}
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultSessionCookieName
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if !k.Exists(KeyExemptPaths) {
		cfg.ExemptPaths = slices.Clone(DefaultExemptPaths)
	}
	return cfg
}

// seconds converts a second count to a duration; unparsable values arrive
// here as 0 and negative values are clamped to 0.
func seconds(n int64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch c.AuthStrategy {
	case StrategyNone, StrategyBasic, StrategySession, StrategySessionExp, StrategySessionDB:
	default:
		return oops.Code("CONFIG_INVALID").
			With("auth_strategy", c.AuthStrategy).
			Errorf("auth strategy must be one of none, basic, session, session_exp, session_db")
	}
	switch c.SessionBackend {
	case BackendMemory, BackendPostgres:
	default:
		return oops.Code("CONFIG_INVALID").
			With("session_backend", c.SessionBackend).
			Errorf("session backend must be 'memory' or 'postgres'")
	}
	if c.AuthStrategy == StrategySessionDB && c.SessionBackend != BackendPostgres {
		return oops.Code("CONFIG_INVALID").Errorf("auth strategy session_db requires the postgres session backend")
	}
	if c.SessionBackend == BackendPostgres && c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required for the postgres session backend")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen address is required")
	}
	return nil
}
