package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PULSE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "PULSE_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "server.cors_origins", typ: kString, env: "PULSE_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.CORSOrigins },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PULSE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "PULSE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "ai.backend", typ: kString, env: "PULSE_AI_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.AI.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Backend },
	},
	{
		key: "ai.base_url", typ: kString, env: "PULSE_AI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.AI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.BaseURL },
	},
	{
		key: "ai.model", typ: kString, env: "PULSE_AI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.AI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Model },
	},
	{
		key: "ai.timeout", typ: kString, env: "PULSE_AI_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.AI.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Timeout },
	},
	{
		key: "ai.provider_key", typ: kString, env: "PULSE_AI_PROVIDER_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.AI.ProviderKey = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.ProviderKey },
	},
	{
		key: "retail.serpapi_key", typ: kString, env: "PULSE_SERPAPI_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Retail.SerpAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Retail.SerpAPIKey },
	},
	{
		key: "retail.cache_ttl_ms", typ: kInt, env: "PULSE_RETAIL_CACHE_TTL_MS",
		apply:   func(cfg *Config, v any) { cfg.Retail.CacheTTLMs = v.(int) },
		extract: func(cfg Config) any { return cfg.Retail.CacheTTLMs },
	},
	{
		key: "retail.cache_size", typ: kInt, env: "PULSE_RETAIL_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Retail.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Retail.CacheSize },
	},
	{
		key: "retail.cache_sweep_interval", typ: kString, env: "PULSE_RETAIL_CACHE_SWEEP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Retail.CacheSweepInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Retail.CacheSweepInterval },
	},
	{
		key: "retail.confidence_threshold", typ: kFloat, env: "PULSE_RETAIL_CONFIDENCE_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Retail.ConfidenceThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retail.ConfidenceThreshold },
	},
	{
		key: "retail.max_links", typ: kInt, env: "PULSE_RETAIL_MAX_LINKS",
		apply:   func(cfg *Config, v any) { cfg.Retail.MaxLinks = v.(int) },
		extract: func(cfg Config) any { return cfg.Retail.MaxLinks },
	},
	{
		key: "retail.lookup_budget", typ: kInt, env: "PULSE_RETAIL_LOOKUP_BUDGET",
		apply:   func(cfg *Config, v any) { cfg.Retail.LookupBudget = v.(int) },
		extract: func(cfg Config) any { return cfg.Retail.LookupBudget },
	},
	{
		key: "retail.timeout", typ: kString, env: "PULSE_RETAIL_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Retail.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Retail.Timeout },
	},
	{
		key: "media.probe_timeout_ms", typ: kInt, env: "PULSE_MEDIA_PROBE_TIMEOUT_MS",
		apply:   func(cfg *Config, v any) { cfg.Media.ProbeTimeoutMs = v.(int) },
		extract: func(cfg Config) any { return cfg.Media.ProbeTimeoutMs },
	},
	{
		key: "ratelimit.max", typ: kInt, env: "PULSE_RATELIMIT_MAX",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Max = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.Max },
	},
	{
		key: "ratelimit.window_ms", typ: kInt, env: "PULSE_RATELIMIT_WINDOW_MS",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.WindowMs = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.WindowMs },
	},
	{
		key: "metrics.read_key", typ: kString, env: "PULSE_METRICS_READ_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Metrics.ReadKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Metrics.ReadKey },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s: %v. Using default value.\n", s.key, err)
			} else if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetFloat(s.key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s: %v. Using default value.\n", s.key, err)
			} else if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// applySecrets fills secrets the environment left empty from the secrets
// file, keyed by the config key with dots replaced by underscores.
func applySecrets(cfg *Config, secrets secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := secrets.Get(secretName(s.key)); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func secretName(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}
