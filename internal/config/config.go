package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	AI        AIConfig
	Retail    RetailConfig
	Media     MediaConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port        int
	MCPEnabled  bool
	CORSOrigins string // comma-separated; empty disables CORS headers
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type AIConfig struct {
	Backend     string // "openai" or "gemini"
	BaseURL     string
	Model       string
	Timeout     string
	ProviderKey string
}

type RetailConfig struct {
	SerpAPIKey          string
	CacheTTLMs          int
	CacheSize           int
	CacheSweepInterval  string
	ConfidenceThreshold float64
	MaxLinks            int
	LookupBudget        int
	Timeout             string
}

type MediaConfig struct {
	ProbeTimeoutMs int
}

type RateLimitConfig struct {
	Max      int
	WindowMs int
}

type MetricsConfig struct {
	ReadKey string
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4100},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
		AI: AIConfig{
			Backend: "openai",
			Model:   "gpt-4o-mini",
			Timeout: "60s",
		},
		Retail: RetailConfig{
			CacheTTLMs:          900000,
			CacheSize:           256,
			ConfidenceThreshold: 0.45,
			MaxLinks:            4,
			Timeout:             "8s",
		},
		Media:     MediaConfig{ProbeTimeoutMs: 2500},
		RateLimit: RateLimitConfig{Max: 45, WindowMs: 60000},
	}
}

// Load reads configuration in increasing precedence: defaults, the JSON
// config file at $XDG_CONFIG_HOME/pulse/config.json, and PULSE_* environment
// variables. A .env file in the working directory is loaded into the
// environment first without overriding variables that are already set.
//
// Secrets come from the environment or the secrets file only. Missing
// secrets are not an error here; the components that need them report a
// configuration error per request instead.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load .env: %v\n", err)
	}
	return loadWith(newPlatformBackend(), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(name string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if cfg.AI.Backend != "openai" && cfg.AI.Backend != "gemini" {
		return Config{}, fmt.Errorf("invalid ai.backend %q: must be openai or gemini", cfg.AI.Backend)
	}
	return cfg, nil
}

// AITimeout is the per-call timeout for the description provider.
// AllowedOrigins splits server.cors_origins into trimmed, non-empty origins.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) AITimeout() time.Duration {
	return parseDuration("ai.timeout", c.AI.Timeout, 60*time.Second)
}

// RetailTimeout bounds a single retailer lookup.
func (c Config) RetailTimeout() time.Duration {
	return parseDuration("retail.timeout", c.Retail.Timeout, 8*time.Second)
}

// CacheSweepInterval is zero when background sweeping is disabled.
func (c Config) CacheSweepInterval() time.Duration {
	if c.Retail.CacheSweepInterval == "" {
		return 0
	}
	return parseDuration("retail.cache_sweep_interval", c.Retail.CacheSweepInterval, 0)
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Retail.CacheTTLMs) * time.Millisecond
}

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Media.ProbeTimeoutMs) * time.Millisecond
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMs) * time.Millisecond
}

func parseDuration(key, raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", key, raw, err)
		return def
	}
	return d
}
