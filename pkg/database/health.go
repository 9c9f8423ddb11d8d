package database

import (
	"context"
	"time"
)

// HealthStatus is the shape returned by the /health endpoint's database
// section (§6).
type HealthStatus struct {
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
	OpenConns    int    `json:"open_connections"`
	InUseConns   int    `json:"in_use_connections"`
	IdleConns    int    `json:"idle_connections"`
	PingDuration string `json:"ping_duration"`
}

// Health pings the pool and reports its current stats. A failed ping
// never panics the caller; it surfaces as Healthy=false with Error set.
func (c *Client) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := c.db.PingContext(ctx)
	elapsed := time.Since(start)

	stats := c.db.Stats()
	status := HealthStatus{
		Healthy:      err == nil,
		OpenConns:    stats.OpenConnections,
		InUseConns:   stats.InUse,
		IdleConns:    stats.Idle,
		PingDuration: elapsed.String(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
