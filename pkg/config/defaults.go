package config

import "time"

// defaults returns the built-in configuration merged under any
// user-supplied tradedesk.yaml (dario.cat/mergo; user values win).
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: "8080",
			GinMode:  "release",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
			},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "tradedesk",
			Database:        "tradedesk",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Gateway: GatewayConfig{
			LLMAddr:                "localhost:50051",
			CallTimeout:            30 * time.Second,
			QuoteFanoutConcurrency: 8,
			Cache: CacheConfig{
				MaxItems: 10_000,
				TTLs: CacheTTLs{
					Quote:     15 * time.Second,
					News:      10 * time.Minute,
					Series:    5 * time.Minute,
					FearGreed: 10 * time.Minute,
				},
			},
			RateLimits: map[string]TokenBucketConfig{
				"llm":        {Burst: 10, RefillPerSecond: 2},
				"market":     {Burst: 20, RefillPerSecond: 10},
				"news":       {Burst: 10, RefillPerSecond: 2},
				"series":     {Burst: 10, RefillPerSecond: 2},
				"sentiment":  {Burst: 10, RefillPerSecond: 2},
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   200 * time.Millisecond,
				MaxDelay:    5 * time.Second,
			},
		},
		Pipeline: PipelineConfig{
			MaxDebateRounds: 2,
			MaxRiskRounds:   1,
			MaxToolRounds:   8,
			AgentStepBudget: 120 * time.Second,
			SessionDeadline: 30 * time.Minute,
			ProgressLinger:  30 * time.Second,
			OnlineTools:     true,
			Model:           "gemini-2.0-flash",
		},
		RateLimit: RateLimitConfig{
			Global: EndpointLimit{MaxRequests: 500, Window: 60 * time.Second},
			PerEndpoint: map[string]EndpointLimit{
				"/api/v1/auth/login":      {MaxRequests: 5, Window: 300 * time.Second},
				"/api/v1/analysis/start":  {MaxRequests: 10, Window: 300 * time.Second},
			},
			SkipPaths: []string{"/health"},
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
		},
		Auth: AuthConfig{
			AccessTokenTTL:  7 * 24 * time.Hour,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
	}
}
