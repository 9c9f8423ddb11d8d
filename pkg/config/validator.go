package config

import "fmt"

// Validate checks invariants that defaults()+applyYAML()+applyEnv() cannot
// guarantee on their own (cross-field constraints, required secrets).
func Validate(cfg *Config) error {
	if cfg.Database.Password == "" {
		return fmt.Errorf("database password is required (set DB_PASSWORD)")
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		return fmt.Errorf("database max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database max_open_conns must be at least 1")
	}
	if cfg.Pipeline.MaxDebateRounds < 1 {
		return fmt.Errorf("pipeline max_debate_rounds must be at least 1")
	}
	if cfg.Pipeline.MaxRiskRounds < 1 {
		return fmt.Errorf("pipeline max_risk_rounds must be at least 1")
	}
	if cfg.Pipeline.MaxToolRounds < 1 {
		return fmt.Errorf("pipeline max_tool_rounds must be at least 1")
	}
	if cfg.Gateway.QuoteFanoutConcurrency < 1 {
		return fmt.Errorf("gateway quote_fanout_concurrency must be at least 1")
	}
	if cfg.Gateway.Retry.MaxAttempts < 1 {
		return fmt.Errorf("gateway retry max_attempts must be at least 1")
	}
	if cfg.RateLimit.Global.MaxRequests < 1 {
		return fmt.Errorf("rate_limit global max_requests must be at least 1")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required (set JWT_SECRET)")
	}
	return nil
}
