// Package config loads polyrpc's declarative server/client configuration
// from a YAML file, per SPEC_FULL.md §2: the teacher repo has no config
// file loader of its own (its flags are plain Go call arguments), so
// this adopts github.com/goccy/go-yaml, the YAML library seen elsewhere
// in the example pack's toolchains.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// ProtocolListener binds one of the three wire protocols to a listen
// address, so a single server process can expose the same services over
// more than one protocol at once.
type ProtocolListener struct {
	Protocol string `yaml:"protocol"` // "xmlrpc", "binrpc", "jsonrpc"
	Address  string `yaml:"address"`
	HTTPPath string `yaml:"http_path,omitempty"` // only meaningful for xmlrpc/jsonrpc-over-HTTP
}

// EtcdConfig configures the etcd-backed service registry.
type EtcdConfig struct {
	Endpoints     []string `yaml:"endpoints"`
	TTLSeconds    int64    `yaml:"ttl_seconds"`
	AdvertiseAddr string   `yaml:"advertise_addr"`
}

// RateLimit configures middleware.RateLimitMiddleware.
type RateLimit struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// ServerConfig is the top-level shape of a polyrpc-server config.yaml.
// Timeouts are authored as duration literals ("30s", "2m") and parsed by
// resolveDurations after unmarshaling: goccy/go-yaml decodes a
// time.Duration field as the bare int64 it wraps, not as a duration
// string, so a literal `time.Duration` field would silently reject
// "30s" instead of parsing it.
type ServerConfig struct {
	Listeners []ProtocolListener `yaml:"listeners"`

	MinThreads int `yaml:"min_threads"`
	MaxThreads int `yaml:"max_threads"`

	IdleTimeoutRaw  string `yaml:"idle_timeout"`
	ReadTimeoutRaw  string `yaml:"read_timeout"`
	WriteTimeoutRaw string `yaml:"write_timeout"`
	KeepAliveRaw    string `yaml:"keep_alive"`

	IdleTimeout  time.Duration `yaml:"-"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	KeepAlive    time.Duration `yaml:"-"`

	Etcd      *EtcdConfig `yaml:"etcd,omitempty"`
	RateLimit *RateLimit  `yaml:"rate_limit,omitempty"`

	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"
}

func (c *ServerConfig) resolveDurations() error {
	var err error
	if c.IdleTimeout, err = parseDuration(c.IdleTimeoutRaw); err != nil {
		return fmt.Errorf("idle_timeout: %w", err)
	}
	if c.ReadTimeout, err = parseDuration(c.ReadTimeoutRaw); err != nil {
		return fmt.Errorf("read_timeout: %w", err)
	}
	if c.WriteTimeout, err = parseDuration(c.WriteTimeoutRaw); err != nil {
		return fmt.Errorf("write_timeout: %w", err)
	}
	if c.KeepAlive, err = parseDuration(c.KeepAliveRaw); err != nil {
		return fmt.Errorf("keep_alive: %w", err)
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

// ClientConfig is the top-level shape of a polyrpc-client config.yaml.
type ClientConfig struct {
	Protocol string      `yaml:"protocol"`
	PoolSize int         `yaml:"pool_size"`
	Etcd     *EtcdConfig `yaml:"etcd,omitempty"`
}

// LoadServerConfig reads and parses path into a ServerConfig.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.resolveDurations(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadClientConfig reads and parses path into a ClientConfig.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
