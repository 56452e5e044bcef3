// Package models defines the service configuration tree and the JSON
// response types shared by the API handlers.
package models

import (
	"errors"
	"fmt"
	"time"

	"gatekeeper/pkg/ratelimit"
)

// Rate limit algorithm constants
const (
	AlgorithmFixed   = "fixed"
	AlgorithmSliding = "sliding"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Audit         AuditConfig         `yaml:"audit" json:"audit"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

// RateLimitConfig selects and parameterizes the admission algorithm.
// AuthenticatedLimit applies to requests presenting an API key; when zero
// it defaults to twice the anonymous limit.
type RateLimitConfig struct {
	Enabled            bool          `yaml:"enabled" json:"enabled"`
	Algorithm          string        `yaml:"algorithm" json:"algorithm"`
	Window             time.Duration `yaml:"window" json:"window"`
	Limit              int           `yaml:"limit" json:"limit"`
	AuthenticatedLimit int           `yaml:"authenticated_limit" json:"authenticated_limit"`
	MaxKeys            int           `yaml:"max_keys" json:"max_keys"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// AuditConfig controls the write-behind denial log. The log is an audit
// trail only; quota state itself is never persisted.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	BufferSize int    `yaml:"buffer_size" json:"buffer_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig returns a configuration that works out of the box:
// sliding-window limiting at 120 requests per minute, text logs on stdout,
// metrics and tracing off.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Algorithm: AlgorithmSliding,
			Window:    time.Minute,
			Limit:     120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Audit: AuditConfig{
			Enabled:    false,
			Path:       "gatekeeper-audit.db",
			BufferSize: 1024,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.TLSEnabled && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file are required when TLS is enabled"))
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Algorithm {
		case AlgorithmFixed, AlgorithmSliding:
		default:
			errs = append(errs, fmt.Errorf("rate_limit.algorithm must be %q or %q, got %q",
				AlgorithmFixed, AlgorithmSliding, c.RateLimit.Algorithm))
		}
		// Reject bad quota parameters at startup, the same check the
		// limiter constructors repeat.
		quota := ratelimit.Config{Window: c.RateLimit.Window, Limit: c.RateLimit.Limit}
		if err := quota.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rate_limit: %w", err))
		}
		if c.RateLimit.AuthenticatedLimit < 0 {
			errs = append(errs, fmt.Errorf("rate_limit.authenticated_limit must not be negative, got %d", c.RateLimit.AuthenticatedLimit))
		}
		if c.RateLimit.MaxKeys < 0 {
			errs = append(errs, fmt.Errorf("rate_limit.max_keys must not be negative, got %d", c.RateLimit.MaxKeys))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		errs = append(errs, errors.New("logging.file_path is required when logging.output is file"))
	}

	if c.Audit.Enabled {
		if c.Audit.Path == "" {
			errs = append(errs, errors.New("audit.path is required when audit is enabled"))
		}
		if c.Audit.BufferSize < 1 {
			errs = append(errs, fmt.Errorf("audit.buffer_size must be positive, got %d", c.Audit.BufferSize))
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			errs = append(errs, fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
		}
		if c.Metrics.Path == "" {
			errs = append(errs, errors.New("metrics.path is required when metrics are enabled"))
		}
	}

	if c.Observability.Tracing.Enabled {
		switch c.Observability.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if c.Observability.Tracing.OTLPEndpoint == "" {
				errs = append(errs, errors.New("observability.tracing.otlp_endpoint is required for the otlp exporter"))
			}
		default:
			errs = append(errs, fmt.Errorf("observability.tracing.exporter must be stdout or otlp, got %q", c.Observability.Tracing.Exporter))
		}
	}

	return errors.Join(errs...)
}
