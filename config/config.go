// Package config implements the Configuration Adapter: a functional-
// options Config struct with environment and YAML-file loading,
// patterned on core/config.go's DefaultConfig/Option pattern.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec §6 plus the domain-stack
// additions (discovery backend, telemetry endpoint, sampling) wired in
// by SPEC_FULL.md.
type Config struct {
	// NodePoolSize pre-reserves this many bytes in the node trie's arena
	// at startup, per spec §6.
	NodePoolSize int `yaml:"node_pool_size"`

	// Output names the metadata writer service to use: "csv" (default),
	// "redis", or "none" to disable output entirely.
	Output string `yaml:"output"`

	// TelemetryEndpoint is the OTLP collector address for
	// service/telemetryservice. Empty disables OTLP export (spans go to
	// the stdout exporter instead, for local development).
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`

	// RedisAddr is the connection address for service/rediswriter when
	// Output == "redis".
	RedisAddr string `yaml:"redis_addr"`

	// RedisNamespace prefixes every key rediswriter writes, so multiple
	// caliper instances can share one Redis database.
	RedisNamespace string `yaml:"redis_namespace"`

	// SamplingRate is an opaque pass-through for callers that want to
	// decide begin/end sampling outside the hot path; caliper itself
	// never samples on the caller's behalf (that stays a Non-goal).
	SamplingRate float64 `yaml:"sampling_rate"`

	// ServiceName tags logs and OTel resource attributes.
	ServiceName string `yaml:"service_name"`
}

// Option mutates a Config during construction.
type Option func(*Config) error

// DefaultConfig returns the baseline configuration: a 64KB node pool,
// CSV output, no telemetry endpoint (stdout exporter), service name
// "caliper".
func DefaultConfig() *Config {
	return &Config{
		NodePoolSize: 64 * 1024,
		Output:       "csv",
		ServiceName:  "caliper",
	}
}

// New builds a Config from DefaultConfig with opts applied in order.
func New(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// WithNodePoolSize overrides the node trie's initial arena reservation.
func WithNodePoolSize(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("node_pool_size must be >= 0, got %d", n)
		}
		c.NodePoolSize = n
		return nil
	}
}

// WithOutput selects the metadata writer service.
func WithOutput(name string) Option {
	return func(c *Config) error {
		c.Output = name
		return nil
	}
}

// WithTelemetryEndpoint sets the OTLP collector address.
func WithTelemetryEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.TelemetryEndpoint = endpoint
		return nil
	}
}

// WithRedis sets the redis writer's address and key namespace.
func WithRedis(addr, namespace string) Option {
	return func(c *Config) error {
		c.RedisAddr = addr
		c.RedisNamespace = namespace
		return nil
	}
}

// WithServiceName overrides the default "caliper" service tag.
func WithServiceName(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("service_name must not be empty")
		}
		c.ServiceName = name
		return nil
	}
}

// Validate rejects a Config with contradictory or out-of-range fields.
func (c *Config) Validate() error {
	if c.NodePoolSize < 0 {
		return fmt.Errorf("node_pool_size must be >= 0, got %d", c.NodePoolSize)
	}
	switch c.Output {
	case "csv", "redis", "none", "":
	default:
		return fmt.Errorf("unknown output writer %q", c.Output)
	}
	if c.Output == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("output=redis requires redis_addr")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be in [0,1], got %f", c.SamplingRate)
	}
	return nil
}

// env var names, CALIPER_-prefixed to match logger's convention.
const (
	envNodePoolSize      = "CALIPER_NODE_POOL_SIZE"
	envOutput            = "CALIPER_OUTPUT"
	envTelemetryEndpoint = "CALIPER_TELEMETRY_ENDPOINT"
	envRedisAddr         = "CALIPER_REDIS_ADDR"
	envRedisNamespace    = "CALIPER_REDIS_NAMESPACE"
	envServiceName       = "CALIPER_SERVICE_NAME"
)

// LoadFromEnv builds a Config from CALIPER_*-prefixed environment
// variables layered on top of DefaultConfig.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(envNodePoolSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envNodePoolSize, err)
		}
		cfg.NodePoolSize = n
	}
	if v := os.Getenv(envOutput); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv(envTelemetryEndpoint); v != "" {
		cfg.TelemetryEndpoint = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv(envRedisNamespace); v != "" {
		cfg.RedisNamespace = v
	}
	if v := os.Getenv(envServiceName); v != "" {
		cfg.ServiceName = v
	}

	return cfg, cfg.Validate()
}

// LoadFromFile reads a YAML config file in the same shape as Config's
// yaml tags, layered on top of DefaultConfig for any field it omits.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, cfg.Validate()
}
