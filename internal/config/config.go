// Package config loads and validates the pagecached YAML
// configuration. Validation happens once at startup; a config that
// parses here never fails at request time.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgecache-io/pagecache/pkg/admission"
)

// SignalHeader mirrors admission.SignalHeader for YAML decoding.
type SignalHeader struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// CacheConfig is the caching section of the config file.
type CacheConfig struct {
	Enabled    *bool  `yaml:"enabled"` // nil defaults to true
	TTLSeconds int    `yaml:"ttl_seconds"`
	Version    string `yaml:"version"` // static page version token
	KeyPrefix  string `yaml:"key_prefix"`

	AnonymousOnly bool           `yaml:"anonymous_only"`
	IncludeHTTPS  *bool          `yaml:"include_https"` // nil defaults to true
	SignalHeaders []SignalHeader `yaml:"https_signal_headers"`

	LookupIdentifier        string `yaml:"lookup_identifier"`
	SupplementaryIdentifier string `yaml:"supplementary_identifier"`
	VersionCookie           string `yaml:"version_cookie"`
}

// RedisConfig is the shared-store section of the config file.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// LogConfig is the logging section of the config file.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the top-level pagecached.yaml structure.
type Config struct {
	Listen        string      `yaml:"listen"`
	MetricsListen string      `yaml:"metrics_listen"`
	Upstream      string      `yaml:"upstream"`
	LookupDB      string      `yaml:"lookup_db"`
	Redis         RedisConfig `yaml:"redis"`
	Log           LogConfig   `yaml:"log"`
	Cache         CacheConfig `yaml:"cache"`
}

// LoadFile reads, parses, and validates a YAML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data, applying defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.MetricsListen == "" {
		c.MetricsListen = ":9091"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Cache.VersionCookie == "" {
		c.Cache.VersionCookie = "pv"
	}
}

func (c *Config) validate() error {
	if c.Upstream == "" {
		return fmt.Errorf("upstream is required")
	}
	u, err := url.Parse(c.Upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream must be an absolute URL (got %q)", c.Upstream)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive (got %d)", c.Cache.TTLSeconds)
	}
	return nil
}

// CacheEnabled reports the process-wide kill switch, defaulting on.
func (c *Config) CacheEnabled() bool {
	if c.Cache.Enabled == nil {
		return true
	}
	return *c.Cache.Enabled
}

// TTL returns the cache expiry as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Policy builds the admission policy from the config.
func (c *Config) Policy() admission.Policy {
	policy := admission.Policy{
		Enabled:       c.CacheEnabled(),
		AnonymousOnly: c.Cache.AnonymousOnly,
		IncludeHTTPS:  true,
	}
	if c.Cache.IncludeHTTPS != nil {
		policy.IncludeHTTPS = *c.Cache.IncludeHTTPS
	}
	if c.Cache.SignalHeaders != nil {
		headers := make([]admission.SignalHeader, len(c.Cache.SignalHeaders))
		for i, h := range c.Cache.SignalHeaders {
			headers[i] = admission.SignalHeader{Name: h.Name, Value: h.Value}
		}
		policy.SignalHeaders = headers
	}
	return policy
}
