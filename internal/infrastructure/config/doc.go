// Package config provides 12-factor configuration for the monolith command.
//
// Defaults come from environment variables. A policy file (YAML, TOML or
// JSON, chosen by extension) can then switch toggles on or off, and command
// line flags override both.
//
// Configuration Sections:
//   - Fetch: timeout, user agent, TLS verification, retries, rate limit, breaker threshold
//   - Cache: on-disk tier toggle, spill threshold and file location
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	p := cfg.Policy()
//	if pf, err := config.LoadPolicyFile("strict.yaml"); err == nil {
//		_ = pf.Apply(&p)
//	}
//
// Environment Variables:
//   - MONOLITH_TIMEOUT, MONOLITH_USER_AGENT, MONOLITH_INSECURE
//   - MONOLITH_RETRIES, MONOLITH_RATE_LIMIT, MONOLITH_BREAKER_THRESHOLD
//   - MONOLITH_DISK_CACHE, MONOLITH_CACHE_MIN_DISK_SIZE, MONOLITH_CACHE_PATH
//   - LOG_LEVEL, LOG_FORMAT (text or json)
package config
