package config

import (
	"fmt"

	"sysaura/internal/services"
)

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return newError("server.addr is empty", "Set it to a listen address such as :5002")
	}
	if c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst < 1 {
		return newError("server.rate_limit must be positive",
			"Use requests_per_second > 0 and burst >= 1")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return newError("server.tls is enabled without cert_file and key_file",
			"Provide both paths or set server.tls.enabled: false")
	}
	if c.Database.Path == "" {
		return newError("database.path is empty", "Use a file path or :memory:")
	}
	if c.History.Capacity < 1 {
		return newError(fmt.Sprintf("history.capacity must be at least 1, got %d", c.History.Capacity),
			fmt.Sprintf("The default is %d samples", services.DefaultHistorySize))
	}
	if c.Cache.DefaultTTL <= 0 {
		return newError("cache.default_ttl must be positive", "Use a duration such as 60s")
	}
	if c.Auth.TokenExpiry <= 0 {
		return newError("auth.token_expiry must be positive", "Use a duration such as 24h")
	}
	if c.Polling.Enabled && c.Polling.Interval <= 0 {
		return newError("polling.interval must be positive when polling is enabled",
			"Use a duration such as 10s")
	}
	if c.Alerts.NetworkScale <= 0 {
		return newError("alerts.network_scale must be positive", "The default is 10")
	}

	th := c.Alerts.Thresholds
	for name, level := range map[string]services.Level{
		"cpu":     th.CPU,
		"memory":  th.Memory,
		"disk":    th.Disk,
		"network": th.Network,
	} {
		if level.Warning >= level.Critical {
			return newError(
				fmt.Sprintf("alerts.thresholds.%s: warning (%g) must be below critical (%g)", name, level.Warning, level.Critical),
				"Lower the warning level or raise the critical level")
		}
	}
	return nil
}
