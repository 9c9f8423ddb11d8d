package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the subset of Config that is meaningful in
// tradedesk.yaml; server/database secrets and provider credentials come
// from the environment only (§6), never from the checked-in YAML.
type yamlConfig struct {
	Server   *ServerConfig   `yaml:"server"`
	Gateway  *yamlGateway    `yaml:"gateway"`
	Pipeline *PipelineConfig `yaml:"pipeline"`
}

type yamlGateway struct {
	LLMAddr                string                       `yaml:"llm_addr"`
	CallTimeout            time.Duration                `yaml:"call_timeout"`
	QuoteFanoutConcurrency int                          `yaml:"quote_fanout_concurrency"`
	Cache                  *CacheConfig                 `yaml:"cache"`
	RateLimits             map[string]TokenBucketConfig `yaml:"rate_limits"`
	Retry                  *RetryConfig                 `yaml:"retry"`
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Initialize loads, merges, and validates configuration. This is the
// primary entry point called by cmd/tradedesk/main.go, mirroring the
// teacher's config.Initialize(ctx, configDir) phase ordering.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := defaults()

	yamlPath := filepath.Join(configDir, "tradedesk.yaml")
	if raw, err := os.ReadFile(yamlPath); err == nil {
		raw = expandEnv(raw)
		var user yamlConfig
		if err := yaml.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", yamlPath, err)
		}
		if err := applyYAML(cfg, &user); err != nil {
			return nil, fmt.Errorf("merging %s: %w", yamlPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", yamlPath, err)
	} else {
		log.Warn("no tradedesk.yaml found, using built-in defaults", "path", yamlPath)
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyYAML merges user-supplied YAML sections over the built-in
// defaults; user values win on every overlapping field (mergo.WithOverride).
func applyYAML(cfg *Config, user *yamlConfig) error {
	if user.Server != nil {
		if err := mergo.Merge(&cfg.Server, *user.Server, mergo.WithOverride); err != nil {
			return err
		}
	}
	if user.Pipeline != nil {
		if err := mergo.Merge(&cfg.Pipeline, *user.Pipeline, mergo.WithOverride); err != nil {
			return err
		}
	}
	if g := user.Gateway; g != nil {
		if g.LLMAddr != "" {
			cfg.Gateway.LLMAddr = g.LLMAddr
		}
		if g.CallTimeout != 0 {
			cfg.Gateway.CallTimeout = g.CallTimeout
		}
		if g.QuoteFanoutConcurrency != 0 {
			cfg.Gateway.QuoteFanoutConcurrency = g.QuoteFanoutConcurrency
		}
		if g.Cache != nil {
			if err := mergo.Merge(&cfg.Gateway.Cache, *g.Cache, mergo.WithOverride); err != nil {
				return err
			}
		}
		if g.Retry != nil {
			if err := mergo.Merge(&cfg.Gateway.Retry, *g.Retry, mergo.WithOverride); err != nil {
				return err
			}
		}
		for k, v := range g.RateLimits {
			cfg.Gateway.RateLimits[k] = v
		}
	}
	return nil
}

// applyEnv layers the environment variables recognized by the
// bootstrapper (§6 table) over whatever YAML/defaults produced.
func applyEnv(cfg *Config) {
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	if p := os.Getenv("DB_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			cfg.Database.Port = n
		}
	}
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Server.HTTPPort = getEnvOrDefault("HTTP_PORT", cfg.Server.HTTPPort)
	cfg.Server.GinMode = getEnvOrDefault("GIN_MODE", cfg.Server.GinMode)
	if extra := os.Getenv("ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, o)
			}
		}
	}

	cfg.Bootstrap.AdminUsername = getEnvOrDefault("ADMIN_USERNAME", cfg.Bootstrap.AdminUsername)
	cfg.Bootstrap.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.Bootstrap.AdminEmail = os.Getenv("ADMIN_EMAIL")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.Gateway.LLM = credentialFromEnv("LLM_API_KEY")
	cfg.Gateway.FRED = credentialFromEnv("FRED_API_KEY")
	cfg.Gateway.Finnhub = credentialFromEnv("FINNHUB_API_KEY")
	// Naver is a two-part credential (client id + secret); both must be present.
	naverID := os.Getenv("NAVER_CLIENT_ID")
	naverSecret := os.Getenv("NAVER_CLIENT_SECRET")
	cfg.Gateway.Naver = ProviderCredential{
		Enabled: naverID != "" && naverSecret != "",
		APIKey:  naverID + ":" + naverSecret,
	}
}

func credentialFromEnv(envVar string) ProviderCredential {
	key := os.Getenv(envVar)
	return ProviderCredential{Enabled: key != "", APIKey: key}
}

// Stats summarizes the loaded configuration for the health endpoint.
func (c *Config) Stats() Stats {
	n := 0
	for _, cred := range []ProviderCredential{c.Gateway.LLM, c.Gateway.FRED, c.Gateway.Finnhub, c.Gateway.Naver} {
		if cred.Enabled {
			n++
		}
	}
	return Stats{GatewayProviders: n}
}
