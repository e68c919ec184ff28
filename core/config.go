package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultServiceName     = "inbox"
	DefaultDatabaseURL     = "sqlite:////data/app.db"
	DefaultLogLevel        = "info"
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8000
	DefaultMaxBodyBytes    = 1 << 20
	DefaultStatsCacheTTL   = 5
	DefaultShutdownTimeout = 10
)

var logLevels = map[string]struct{}{
	"trace": {},
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

type Config struct {
	ServiceName            string `koanf:"service_name" mapstructure:"service_name"`
	WebhookSecret          string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	DatabaseURL            string `koanf:"database_url" mapstructure:"database_url"`
	LogLevel               string `koanf:"log_level" mapstructure:"log_level"`
	Host                   string `koanf:"host" mapstructure:"host"`
	Port                   int    `koanf:"port" mapstructure:"port"`
	MaxBodyBytes           int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
	StatsCacheTTLSeconds   int    `koanf:"stats_cache_ttl_seconds" mapstructure:"stats_cache_ttl_seconds"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:            DefaultServiceName,
		DatabaseURL:            DefaultDatabaseURL,
		LogLevel:               DefaultLogLevel,
		Host:                   DefaultHost,
		Port:                   DefaultPort,
		MaxBodyBytes:           DefaultMaxBodyBytes,
		StatsCacheTTLSeconds:   DefaultStatsCacheTTL,
		ShutdownTimeoutSeconds: DefaultShutdownTimeout,
	}
}

// Validate rejects configurations the process cannot start with. A missing
// webhook secret is allowed: the service runs but reports not ready and
// rejects every signature.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("core: database_url is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("core: port %d out of range", c.Port)
	}
	if _, ok := logLevels[strings.ToLower(strings.TrimSpace(c.LogLevel))]; !ok {
		return fmt.Errorf("core: invalid log_level %q", c.LogLevel)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("core: max_body_bytes must not be negative")
	}
	if c.StatsCacheTTLSeconds < 0 {
		return fmt.Errorf("core: stats_cache_ttl_seconds must not be negative")
	}
	if c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("core: shutdown_timeout_seconds must not be negative")
	}
	return nil
}

func (c Config) SecretConfigured() bool {
	return strings.TrimSpace(c.WebhookSecret) != ""
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(c.Host), c.Port)
}

func (c Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.StatsCacheTTLSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
