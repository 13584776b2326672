package config

import (
	"time"

	"github.com/spf13/viper"
)

// Quota admission gate config struct
type Quota struct {
	Window       time.Duration
	DefaultLimit int
	Limits       map[string]int
}

// getQuotaConfig returns the quota config with the reference table as default.
func getQuotaConfig(v *viper.Viper) *Quota {
	limits := map[string]int{
		"student":  5,
		"attorney": 50,
	}
	if v.IsSet("quota.limits") {
		limits = make(map[string]int)
		for role := range v.GetStringMap("quota.limits") {
			limits[role] = v.GetInt("quota.limits." + role)
		}
	}

	return &Quota{
		Window:       getDurationOrDefault(v, "quota.window", 24*time.Hour),
		DefaultLimit: getIntOrDefault(v, "quota.default_limit", 100),
		Limits:       limits,
	}
}

// RateLimit per client request limiter config struct
type RateLimit struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// getRateLimitConfig returns the rate limit config.
func getRateLimitConfig(v *viper.Viper) *RateLimit {
	return &RateLimit{
		Enabled: getBoolOrDefault(v, "rate_limit.enabled", true),
		Limit:   getIntOrDefault(v, "rate_limit.limit", 100),
		Window:  getDurationOrDefault(v, "rate_limit.window", 15*time.Minute),
	}
}
