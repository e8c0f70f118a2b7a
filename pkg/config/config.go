// Package config provides the configuration system for mcpbridge.
// A single Config describes the service, every backend connector, the Redis
// envelope transport and the ambient logging and tracing setup.
//
// The configuration is organized into logical sections:
//   - Service: Identification and the metrics listener
//   - Connectors: One entry per backend API
//   - Transport: The Redis queue that carries envelopes
//   - Logging and Observability: Log encoding and trace export
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Connectors = append(cfg.Connectors, *config.NewConnectorConfig("weather", "rest", "https://api.example.com"))
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/compression"
	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/logger"
	"github.com/ajitpratap0/mcpbridge/pkg/observability"
)

// Config is the top-level configuration structure.
type Config struct {
	// Service identification and listeners
	Service ServiceConfig `yaml:"service" json:"service"`

	// Connectors lists the backend APIs to expose as api.<name> destinations
	Connectors []ConnectorConfig `yaml:"connectors" json:"connectors"`

	// Transport configures the Redis envelope queue used by serve
	Transport TransportConfig `yaml:"transport" json:"transport"`

	// Logging settings for the global logger
	Logging logger.Config `yaml:"logging" json:"logging"`

	// Observability settings for tracing
	Observability observability.Config `yaml:"observability" json:"observability"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	// Name is used as the trace service name and the client source prefix
	Name string `yaml:"name" json:"name"`
	// Environment labels traces (e.g., "production", "staging")
	Environment string `yaml:"environment" json:"environment"`
	// MetricsAddr is where serve exposes /metrics; empty disables it
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// TransportConfig configures the Redis envelope transport.
type TransportConfig struct {
	// Addr is the Redis address in host:port form
	Addr string `yaml:"addr" json:"addr"`
	// Password for Redis AUTH
	Password string `yaml:"password" json:"-"`
	// DB selects the Redis logical database
	DB int `yaml:"db" json:"db"`
	// Queue is the list that request envelopes are pushed to
	Queue string `yaml:"queue" json:"queue"`
	// ReplyTTL is how long an unread reply is kept
	ReplyTTL time.Duration `yaml:"reply_ttl" json:"reply_ttl"`
	// PollTimeout bounds each blocking pop so shutdown is noticed
	PollTimeout time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	// Workers is the number of concurrent consumers
	Workers int `yaml:"workers" json:"workers"`
	// Compression names the algorithm for large envelopes (none, gzip,
	// snappy, s2, lz4, zstd)
	Compression string `yaml:"compression" json:"compression"`
	// CompressThreshold is the encoded size from which envelopes are compressed
	CompressThreshold int `yaml:"compress_threshold" json:"compress_threshold"`
}

// NewConfig creates a Config with defaults and no connectors.
func NewConfig() *Config {
	obs := observability.DefaultConfig()
	return &Config{
		Service: ServiceConfig{
			Name:        "mcpbridge",
			Environment: "development",
			MetricsAddr: ":9090",
		},
		Transport: TransportConfig{
			Addr:              "localhost:6379",
			Queue:             "mcpbridge:requests",
			ReplyTTL:          time.Minute,
			PollTimeout:       5 * time.Second,
			Workers:           4,
			Compression:       string(compression.None),
			CompressThreshold: 1024,
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Observability: obs,
	}
}

// Validate checks the configuration and every connector. All failures are
// configuration errors.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "service.name is required")
	}
	if c.Transport.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "transport.workers cannot be negative")
	}
	if c.Transport.ReplyTTL < 0 {
		return errors.New(errors.ErrorTypeConfig, "transport.reply_ttl cannot be negative")
	}
	if _, err := compression.ParseAlgorithm(c.Transport.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid transport.compression")
	}

	seen := make(map[string]struct{}, len(c.Connectors))
	for i := range c.Connectors {
		cc := &c.Connectors[i]
		if err := cc.Validate(); err != nil {
			return err
		}
		if _, dup := seen[cc.Name]; dup {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate connector name %q", cc.Name)
		}
		seen[cc.Name] = struct{}{}
	}
	return nil
}

// Connector returns the connector configuration with the given name.
func (c *Config) Connector(name string) (*ConnectorConfig, bool) {
	for i := range c.Connectors {
		if c.Connectors[i].Name == name {
			return &c.Connectors[i], true
		}
	}
	return nil, false
}

// applyDefaults fills unset connector fields after YAML decoding.
func (c *Config) applyDefaults() {
	for i := range c.Connectors {
		c.Connectors[i].applyDefaults()
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Service.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Service.Environment
	}
}
