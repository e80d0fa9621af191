// Package config provides configuration loading for the growth co-pilot.
//
// Values come from hardcoded defaults, an optional YAML file, and GROWTH_*
// environment variables, in increasing order of precedence. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Commentary providers.
const (
	CommentaryTemplate = "template"
	CommentaryGemini   = "gemini"
)

// Config holds the complete service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	Observability ObservabilityConfig `koanf:"observability"`
	Storage       StorageConfig       `koanf:"storage"`
	Commentary    CommentaryConfig    `koanf:"commentary"`
	Events        EventsConfig        `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second allowed per client on /api/v1; 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	// OTLPProtocol is "http/protobuf" or "grpc".
	OTLPProtocol string `koanf:"otlp_protocol"`
	Insecure     bool   `koanf:"insecure"`
}

// StorageConfig selects where strategy memory and plan history live.
type StorageConfig struct {
	Driver     string `koanf:"driver"`
	SQLitePath string `koanf:"sqlite_path"`
}

// CommentaryConfig configures the strategy commentary provider.
type CommentaryConfig struct {
	Provider string        `koanf:"provider"`
	Model    string        `koanf:"model"`
	APIKey   Secret        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout"`
}

// EventsConfig configures plan event publishing. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "sme-growth-copilot"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4318"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "http/protobuf"
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}
	if cfg.Storage.Driver == StorageSQLite && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "growth_copilot.db"
	}

	if cfg.Commentary.Provider == "" {
		cfg.Commentary.Provider = CommentaryTemplate
	}
	if cfg.Commentary.Model == "" {
		cfg.Commentary.Model = "gemini-2.0-flash"
	}
	if cfg.Commentary.Timeout == 0 {
		cfg.Commentary.Timeout = 30 * time.Second
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "growth"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	switch c.Observability.OTLPProtocol {
	case "http/protobuf", "grpc":
	default:
		return fmt.Errorf("unknown otlp protocol %q (want \"http/protobuf\" or \"grpc\")", c.Observability.OTLPProtocol)
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite_path required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want %q or %q)", c.Storage.Driver, StorageMemory, StorageSQLite)
	}

	switch c.Commentary.Provider {
	case CommentaryTemplate:
	case CommentaryGemini:
		if !c.Commentary.APIKey.IsSet() {
			return errors.New("commentary api_key required for gemini provider")
		}
	default:
		return fmt.Errorf("unknown commentary provider %q", c.Commentary.Provider)
	}
	if c.Commentary.Timeout <= 0 {
		return errors.New("commentary timeout must be positive")
	}

	return nil
}
