// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cadenza/config.yaml",
	"/etc/cadenza/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources with precedence
// ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envAliases maps the flat operational variable names to config paths.
// Anything not listed here can still be set with the CADENZA_ prefix, e.g.
// CADENZA_RECOMMEND_MAX_SAME_ARTIST_RUN=4 -> recommend.max_same_artist_run.
var envAliases = map[string]string{
	"DATABASE_URL":                "store.url",
	"CACHE_URL":                   "cache.url",
	"REDIS_URL":                   "cache.url",
	"HTTP_HOST":                   "server.host",
	"HTTP_PORT":                   "server.port",
	"SKIP_WINDOW_SECONDS":         "recommend.skip_window",
	"SKIP_THRESHOLD":              "recommend.skip_threshold",
	"CACHE_TTL_SECONDS":           "cache.ttl",
	"MAX_SAME_ARTIST_CONSECUTIVE": "recommend.max_same_artist_run",
	"DEFAULT_LIMIT":               "recommend.default_limit",
	"INTEREST_GRAPH_ENABLED":      "recommend.interest_graph_enabled",
	"CORS_ORIGIN":                 "security.cors_origins",
	"AUTH_MODE":                   "security.auth_mode",
	"JWT_SECRET":                  "security.jwt_secret",
	"LOG_LEVEL":                   "logging.level",
	"LOG_FORMAT":                  "logging.format",
}

// secondsAliases are aliases whose values are bare second counts; they are
// rewritten to Go duration strings so they unmarshal into time.Duration.
var secondsAliases = map[string]bool{
	"SKIP_WINDOW_SECONDS": true,
	"CACHE_TTL_SECONDS":   true,
}

// envTransform maps an environment variable name to a koanf path.
// Unrecognized variables without the CADENZA_ prefix are ignored.
func envTransform(key string) string {
	if path, ok := envAliases[key]; ok {
		return path
	}

	if !strings.HasPrefix(key, "CADENZA_") {
		return ""
	}

	key = strings.TrimPrefix(key, "CADENZA_")
	key = strings.ToLower(key)

	// First segment is the section, the rest is the field.
	for _, section := range []string{"server", "store", "cache", "recommend", "push", "security", "logging"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated slices when set via env.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices, and
// rewrites bare-second aliases to duration strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}

	for alias := range secondsAliases {
		path := envAliases[alias]
		if val, ok := k.Get(path).(string); ok && val != "" && !strings.ContainsAny(val, "smh") {
			if err := k.Set(path, val+"s"); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}

	return nil
}
