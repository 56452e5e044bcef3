package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, AlgorithmSliding, cfg.RateLimit.Algorithm)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"tls without cert", func(c *Config) { c.Server.TLSEnabled = true }, "tls_cert_file"},
		{"bad algorithm", func(c *Config) { c.RateLimit.Algorithm = "token-bucket" }, "rate_limit.algorithm"},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit"},
		{"zero limit", func(c *Config) { c.RateLimit.Limit = 0 }, "rate_limit"},
		{"negative auth limit", func(c *Config) { c.RateLimit.AuthenticatedLimit = -1 }, "authenticated_limit"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
		{"audit without path", func(c *Config) { c.Audit.Enabled = true; c.Audit.Path = "" }, "audit.path"},
		{"metrics bad port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }, "metrics.port"},
		{"otlp without endpoint", func(c *Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Exporter = "otlp"
		}, "otlp_endpoint"},
		{"unknown exporter", func(c *Config) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.Exporter = "jaeger"
		}, "exporter"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfigValidate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Window = 0
	cfg.RateLimit.Limit = 0

	assert.NoError(t, cfg.Validate())
}
