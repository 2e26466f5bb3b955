package config

import "time"

// RateLimitConfig drives the Redis token bucket in front of /v1.  The key
// strategy decides who shares a bucket: "ip", "ip_route" or
// "ip_subject_route" (subject is the passport or admin username).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to
// usable values.
func LoadRateLimitConfig() RateLimitConfig {
	rc := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_subject_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		rc.Capacity = b
	}
	if rc.Capacity < 1 {
		rc.Capacity = 1
	}
	if rc.RefillTokens < 1 {
		rc.RefillTokens = 1
	}
	if rc.RefillInterval <= 0 {
		rc.RefillInterval = time.Second
	}
	if minTTL := 5 * rc.RefillInterval; rc.TTL < minTTL {
		rc.TTL = minTTL
	}
	return rc
}
