package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BridgeConfig configures the TCP connection to the Blender bridge addon.
type BridgeConfig struct {
	// Host is the bridge listen address. The bridge addon binds to
	// localhost by default.
	Host string `yaml:"host"`

	// Port is the bridge listen port.
	Port int `yaml:"port"`

	// ConnectTimeoutSec bounds the initial dial.
	ConnectTimeoutSec int `yaml:"connect_timeout_sec"`

	// CommandTimeoutSec bounds a single command round-trip. Scene exports
	// and script execution can be slow, so this is deliberately generous.
	CommandTimeoutSec int `yaml:"command_timeout_sec"`
}

// Addr returns the host:port dial address.
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// ConnectTimeout returns the dial timeout as a duration.
func (b BridgeConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSec) * time.Second
}

// CommandTimeout returns the per-command timeout as a duration.
func (b BridgeConfig) CommandTimeout() time.Duration {
	return time.Duration(b.CommandTimeoutSec) * time.Second
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Enabled toggles the cache. When false every lookup misses and every
	// store is a no-op; call sites need no changes.
	Enabled bool `yaml:"enabled"`

	// TTLSeconds is the default entry lifetime.
	TTLSeconds int `yaml:"ttl_seconds"`

	// MaxEntries bounds the store. Inserting at capacity evicts one entry.
	MaxEntries int `yaml:"max_entries"`

	// SceneInfoTTL overrides TTLSeconds for scene-scoped keys.
	// Zero means use TTLSeconds.
	SceneInfoTTL int `yaml:"scene_info_ttl"`

	// ObjectInfoTTL overrides TTLSeconds for per-object keys.
	// Zero means use TTLSeconds.
	ObjectInfoTTL int `yaml:"object_info_ttl"`
}

// DefaultTTL returns the default entry lifetime as a duration.
func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// SceneTTL returns the TTL for scene-scoped keys, falling back to the
// default when unset.
func (c CacheConfig) SceneTTL() time.Duration {
	if c.SceneInfoTTL > 0 {
		return time.Duration(c.SceneInfoTTL) * time.Second
	}
	return c.DefaultTTL()
}

// ObjectTTL returns the TTL for per-object keys, falling back to the
// default when unset.
func (c CacheConfig) ObjectTTL() time.Duration {
	if c.ObjectInfoTTL > 0 {
		return time.Duration(c.ObjectInfoTTL) * time.Second
	}
	return c.DefaultTTL()
}

// RateLimitConfig configures the rate limiter and concurrency tracker.
type RateLimitConfig struct {
	// Enabled toggles admission control. When false every check allows.
	Enabled bool `yaml:"enabled"`

	// MaxRequestsPerMinute is the default per-key token bucket limit.
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`

	// ScriptingMaxPerMinute is the bucket limit for script execution,
	// which is both expensive and higher risk than plain queries.
	ScriptingMaxPerMinute int `yaml:"scripting_max_per_minute"`

	// MaxConcurrentRequests caps in-flight commands against the bridge.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`
}

// TracingConfig configures the tracing subsystem.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`   // otlp|jaeger|stdout|none
	SamplePct float64 `yaml:"sample_pct"` // 0.0-1.0
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp|prometheus|stdout|none
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug|info|warn|error
}

// TelemetryConfig groups the observability subsystems.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Config is the root configuration.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Bridge: BridgeConfig{
			Host:              "localhost",
			Port:              9876,
			ConnectTimeoutSec: 5,
			CommandTimeoutSec: 30,
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTLSeconds:    300,
			MaxEntries:    1000,
			SceneInfoTTL:  30,
			ObjectInfoTTL: 60,
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			MaxRequestsPerMinute:  60,
			ScriptingMaxPerMinute: 10,
			MaxConcurrentRequests: 5,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads, expands, parses, and validates the configuration file at path.
// Fields absent from the file keep their Default values.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse parses configuration from raw YAML bytes, expanding ${VAR}
// environment references first.
func Parse(b []byte) (Config, error) {
	expanded, err := ExpandEnv(string(b))
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the numeric invariants the protection layer relies on.
// Telemetry exporter names are validated by the observe package when the
// Observer is constructed.
func (c Config) Validate() error {
	if c.Bridge.Port <= 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("config: bridge port %d out of range", c.Bridge.Port)
	}
	if c.Bridge.ConnectTimeoutSec <= 0 {
		return fmt.Errorf("config: bridge connect_timeout_sec must be positive, got %d", c.Bridge.ConnectTimeoutSec)
	}
	if c.Bridge.CommandTimeoutSec <= 0 {
		return fmt.Errorf("config: bridge command_timeout_sec must be positive, got %d", c.Bridge.CommandTimeoutSec)
	}

	if c.Cache.Enabled {
		if c.Cache.TTLSeconds <= 0 {
			return fmt.Errorf("config: cache ttl_seconds must be positive, got %d", c.Cache.TTLSeconds)
		}
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("config: cache max_entries must be positive, got %d", c.Cache.MaxEntries)
		}
		if c.Cache.SceneInfoTTL < 0 || c.Cache.ObjectInfoTTL < 0 {
			return fmt.Errorf("config: cache ttl overrides must not be negative")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequestsPerMinute <= 0 {
			return fmt.Errorf("config: ratelimit max_requests_per_minute must be positive, got %d", c.RateLimit.MaxRequestsPerMinute)
		}
		if c.RateLimit.ScriptingMaxPerMinute <= 0 {
			return fmt.Errorf("config: ratelimit scripting_max_per_minute must be positive, got %d", c.RateLimit.ScriptingMaxPerMinute)
		}
		if c.RateLimit.MaxConcurrentRequests <= 0 {
			return fmt.Errorf("config: ratelimit max_concurrent_requests must be positive, got %d", c.RateLimit.MaxConcurrentRequests)
		}
	}

	if t := c.Telemetry.Tracing; t.Enabled {
		if t.SamplePct < 0 || t.SamplePct > 1.0 {
			return fmt.Errorf("config: tracing sample_pct must be between 0.0 and 1.0, got %f", t.SamplePct)
		}
	}

	return nil
}
