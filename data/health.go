package data

import (
	"context"
	"time"
)

// Health pings every open connection and reports per service status.
func (d *Data) Health(ctx context.Context) map[string]any {
	services := map[string]any{
		"jobs": map[string]any{"status": "healthy", "driver": d.Driver()},
	}
	healthy := true

	if d.DB != nil && d.dbDriver != nil {
		healthy = check(ctx, services, "database", func(ctx context.Context) error {
			return d.dbDriver.Ping(ctx, d.DB)
		}) && healthy
	}
	if d.Redis != nil && d.rdDriver != nil {
		healthy = check(ctx, services, "redis", func(ctx context.Context) error {
			return d.rdDriver.Ping(ctx, d.Redis)
		}) && healthy
	}

	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return map[string]any{
		"status":    status,
		"timestamp": time.Now(),
		"services":  services,
	}
}

func check(ctx context.Context, services map[string]any, name string, ping func(context.Context) error) bool {
	start := time.Now()
	err := ping(ctx)
	entry := map[string]any{
		"status":  "healthy",
		"latency": time.Since(start).String(),
	}
	if err != nil {
		entry["status"] = "unhealthy"
		entry["error"] = err.Error()
	}
	services[name] = entry
	return err == nil
}
