// Package config loads collector settings from a YAML file and SYSAURA_*
// environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"sysaura/internal/services"

	"github.com/spf13/viper"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "sysaura.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SYSAURA_SERVER_ADDR.
	EnvPrefix = "SYSAURA"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	History  HistoryConfig  `mapstructure:"history"`
	Polling  PollingConfig  `mapstructure:"polling"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
}

type ServerConfig struct {
	Addr           string          `mapstructure:"addr"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	AllowedIPs     []string        `mapstructure:"allowed_ips"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	TLS            TLSConfig       `mapstructure:"tls"`
}

// RateLimitConfig is the per-IP token bucket applied to every request.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type AuthConfig struct {
	// Secret signs tokens. Empty means a key file in the home directory.
	Secret      string        `mapstructure:"secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type PollingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type AlertsConfig struct {
	Dedupe       bool                `mapstructure:"dedupe"`
	NetworkScale float64             `mapstructure:"network_scale"`
	Thresholds   services.Thresholds `mapstructure:"thresholds"`
}

// setDefaults registers every key so that environment overrides and
// Unmarshal see it even when the file omits it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5002")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allowed_ips", []string{})
	v.SetDefault("server.rate_limit.requests_per_second", 100)
	v.SetDefault("server.rate_limit.burst", 200)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_expiry", "24h")
	v.SetDefault("database.path", "sysaura.db")
	v.SetDefault("cache.default_ttl", "60s")
	v.SetDefault("history.capacity", services.DefaultHistorySize)
	v.SetDefault("polling.enabled", false)
	v.SetDefault("polling.interval", "10s")
	v.SetDefault("alerts.dedupe", false)
	v.SetDefault("alerts.network_scale", services.DefaultNetworkScale)

	th := services.DefaultThresholds()
	for name, level := range map[string]services.Level{
		"cpu":     th.CPU,
		"memory":  th.Memory,
		"disk":    th.Disk,
		"network": th.Network,
	} {
		v.SetDefault("alerts.thresholds."+name+".warning", level.Warning)
		v.SetDefault("alerts.thresholds."+name+".critical", level.Critical)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := parse(newViper(), "defaults")
	if err != nil {
		// defaults are static and always decode
		panic(err)
	}
	return cfg
}

// Load reads config from path. With an empty path it looks for sysaura.yaml in
// the working directory and falls back to defaults when there is none.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, wrapError(err, "Config file not found: "+path,
					"Run 'sysaura config init' to create one, or fix the --config path")
			}
			return nil, wrapError(err, "Failed to read config file "+path,
				"Check the file exists and is valid YAML")
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, wrapError(err, "Failed to read "+FileName,
					"Check the YAML syntax")
			}
		}
		path = v.ConfigFileUsed()
	}

	cfg, err := parse(v, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(v *viper.Viper, source string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, wrapError(err, "Invalid config format",
			"Check the YAML syntax in "+source)
	}
	return cfg, nil
}
