// Package config loads and validates TradeDesk's YAML + environment
// configuration, grounded on the teacher's pkg/config loader (YAML file
// plus env-var expansion plus a built-in defaults merge via dario.cat/mergo).
package config

import "time"

// Config is the fully loaded, validated, ready-to-use configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Gateway    GatewayConfig
	Pipeline   PipelineConfig
	RateLimit  RateLimitConfig
	Bootstrap  BootstrapConfig
	Auth       AuthConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	HTTPPort       string   `yaml:"http_port"`
	GinMode        string   `yaml:"gin_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings (§database layer).
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// ProviderCredential is a single provider's enable/credential state,
// derived from the env var table in §6. An empty APIKey (where one is
// required) means the provider is Disabled.
type ProviderCredential struct {
	Enabled bool
	APIKey  string
}

// CacheTTLs are the default TTLs per read-side Gateway operation (§4.1).
type CacheTTLs struct {
	Quote    time.Duration `yaml:"quote"`
	News     time.Duration `yaml:"news"`
	Series   time.Duration `yaml:"series"`
	FearGreed time.Duration `yaml:"fear_greed"`
}

// CacheConfig bounds the process-local TTL+LRU cache (§4.1).
type CacheConfig struct {
	MaxItems int       `yaml:"max_items"`
	TTLs     CacheTTLs `yaml:"ttls"`
}

// TokenBucketConfig parameterizes one provider's rate limiter (§4.1).
type TokenBucketConfig struct {
	Burst            int           `yaml:"burst"`
	RefillPerSecond  float64       `yaml:"refill_per_second"`
}

// RetryConfig parameterizes the Gateway's idempotent-read retry policy (§4.1).
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// GatewayConfig configures the External-Service Gateway (C1).
type GatewayConfig struct {
	LLM        ProviderCredential `yaml:"-"`
	FRED       ProviderCredential `yaml:"-"`
	Finnhub    ProviderCredential `yaml:"-"`
	Naver      ProviderCredential `yaml:"-"`
	LLMAddr    string             `yaml:"llm_addr"`
	CallTimeout time.Duration     `yaml:"call_timeout"`
	QuoteFanoutConcurrency int    `yaml:"quote_fanout_concurrency"`
	Cache      CacheConfig        `yaml:"cache"`
	RateLimits map[string]TokenBucketConfig `yaml:"rate_limits"` // keyed by provider kind
	Retry      RetryConfig        `yaml:"retry"`
}

// PipelineConfig configures the Pipeline Orchestrator (C5) and Agent Runtime (C4).
type PipelineConfig struct {
	MaxDebateRounds  int           `yaml:"max_debate_rounds"`  // default 2 (=> 4 turns)
	MaxRiskRounds    int           `yaml:"max_risk_rounds"`    // default 1 (=> 3 turns)
	MaxToolRounds    int           `yaml:"max_tool_rounds"`    // default 8
	AgentStepBudget  time.Duration `yaml:"agent_step_budget"`  // default 120s
	SessionDeadline  time.Duration `yaml:"session_deadline"`   // default 30m
	ProgressLinger   time.Duration `yaml:"progress_linger"`    // default 30s
	OnlineTools      bool          `yaml:"online_tools"`       // true ⇒ OnlineTools capability set
	Model            string        `yaml:"model"`              // LLM model identifier passed to gateway.Chat
}

// EndpointLimit is one rate-limit rule (max requests per window).
type EndpointLimit struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimitConfig configures the Rate-Limiter Middleware (C7).
type RateLimitConfig struct {
	Global       EndpointLimit
	PerEndpoint  map[string]EndpointLimit
	SkipPaths    []string
}

// BootstrapConfig holds the Startup Bootstrapper's env-derived seed settings (C9, §6).
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// AuthConfig configures token issuance (out of spec scope per §1, but
// still wired so the HTTP surface runs end to end).
type AuthConfig struct {
	JWTSecret       string        `yaml:"-"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`  // default 7 days (§6's auth/login cookie expiry)
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"` // default 30 days
}

// Stats is a small summary returned for the health endpoint.
type Stats struct {
	GatewayProviders int
}
