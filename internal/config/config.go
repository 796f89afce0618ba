// Package config loads AlgoChat's runtime configuration: PSK replay-window
// tuning, cache TTLs, and timeout/retry defaults, following a
// YAML-over-defaults-with-env-override pattern (gopkg.in/yaml.v3).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment-variable overrides.
const EnvPrefix = "ALGOCHAT_"

// Config is the full runtime configuration document.
type Config struct {
	PSK               PSKConfig     `yaml:"psk"`
	PublicKeyCacheTTL time.Duration `yaml:"publicKeyCacheTTL"`
	Send              SendConfig    `yaml:"send"`
	Sync              SyncConfig    `yaml:"sync"`
	Indexer           IndexerConfig `yaml:"indexer"`
}

// PSKConfig tunes the PSK ratchet's local replay-acceptance policy.
//
// SessionSize is recorded for visibility but is NOT applied to the key
// schedule: the ratchet's two-level HKDF tree divides the counter by 100
// as part of the wire-compatible key derivation, so changing it would
// silently desynchronize two peers running different builds.
// CounterWindow is a local acceptance policy (how far a counter may drift
// before being rejected) and is safe to tune per deployment.
type PSKConfig struct {
	SessionSize   int `yaml:"sessionSize"`
	CounterWindow int `yaml:"counterWindow"`
}

// SendConfig configures Chat.Send's default behavior.
type SendConfig struct {
	DefaultTimeout time.Duration `yaml:"defaultTimeout"`
}

// SyncConfig configures SyncManager's retry policy.
type SyncConfig struct {
	MaxRetries int `yaml:"maxRetries"`
}

// IndexerConfig holds page-size and page-count bounds for MessageIndexer's
// paginated scans. It is loaded but not applied by Chat: the indexer takes
// its bounds from discovery.WithPageSize and discovery.WithMaxPages.
type IndexerConfig struct {
	PageSize int `yaml:"pageSize"`
	MaxPages int `yaml:"maxPages"`
}

// Default returns AlgoChat's built-in configuration.
func Default() Config {
	return Config{
		PSK:               PSKConfig{SessionSize: 100, CounterWindow: 200},
		PublicKeyCacheTTL: 5 * time.Minute,
		Send:              SendConfig{DefaultTimeout: 10 * time.Second},
		Sync:              SyncConfig{MaxRetries: 3},
		Indexer:           IndexerConfig{PageSize: 25, MaxPages: 20},
	}
}

// LoadFromPath reads and merges a YAML document at path over Default(),
// then applies environment overrides. A missing file is not an error; the
// defaults (plus env overrides) are returned as-is.
func LoadFromPath(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg, err
	}
	Merge(&cfg, parsed)
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// Merge overlays non-zero fields of src onto dst.
func Merge(dst *Config, src Config) {
	mergeIfSet(&dst.PSK.SessionSize, src.PSK.SessionSize)
	mergeIfSet(&dst.PSK.CounterWindow, src.PSK.CounterWindow)
	mergeIfSet(&dst.PublicKeyCacheTTL, src.PublicKeyCacheTTL)
	mergeIfSet(&dst.Send.DefaultTimeout, src.Send.DefaultTimeout)
	mergeIfSet(&dst.Sync.MaxRetries, src.Sync.MaxRetries)
	mergeIfSet(&dst.Indexer.PageSize, src.Indexer.PageSize)
	mergeIfSet(&dst.Indexer.MaxPages, src.Indexer.MaxPages)
}

func mergeIfSet[T comparable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

// ApplyEnvOverrides lets a handful of timing-sensitive knobs be tuned
// without editing the YAML file via an ALGOCHAT_-prefixed-env-var pattern.
func ApplyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvPrefix + "SEND_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.Send.DefaultTimeout = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPrefix + "SYNC_MAX_RETRIES")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Sync.MaxRetries = n
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPrefix + "PSK_COUNTER_WINDOW")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.PSK.CounterWindow = n
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPrefix + "INDEXER_MAX_PAGES")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Indexer.MaxPages = n
		}
	}
}
