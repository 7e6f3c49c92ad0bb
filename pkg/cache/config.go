package cache

import "time"

// Local backend names accepted by Config.LocalBackend.
const (
	BackendRistretto = "ristretto"
	BackendMemory    = "memory"
)

// WarmupTTL is the fixed TTL used by Warmup.
const WarmupTTL = time.Hour

// Config holds process-wide cache settings. It is read once at construction
// and never mutated afterwards.
// Embed it in the application config for env parsing with caarlos0/env.
type Config struct {
	// Namespace partitions this cache's keys in the shared store.
	Namespace string `env:"CACHE_NAMESPACE" envDefault:"cache-service" yaml:"namespace"`

	// SharedURL is a redis:// or rediss:// URL for the shared tier.
	SharedURL string `env:"CACHE_SHARED_URL" yaml:"shared_url"`

	// LocalBackend selects the in-process store: "ristretto" or "memory".
	// An unavailable native backend falls back to "memory".
	LocalBackend string `env:"CACHE_LOCAL_BACKEND" envDefault:"ristretto" yaml:"local_backend"`

	// DefaultTTL applies when a call passes a zero TTL, and to write-backs
	// from the shared tier into the local one.
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"5m" yaml:"default_ttl"`

	// CheckPeriod is how often the local store sweeps expired entries.
	// Zero leaves expiry purely lazy.
	CheckPeriod time.Duration `env:"CACHE_CHECK_PERIOD" envDefault:"1m" yaml:"check_period"`

	// ProbeInterval is how often a degraded shared store is pinged for recovery.
	ProbeInterval time.Duration `env:"CACHE_SHARED_PROBE_INTERVAL" envDefault:"5s" yaml:"probe_interval"`

	// MaxLocalKeys is a soft cap on local entries. Zero means unbounded.
	MaxLocalKeys int `env:"CACHE_MAX_LOCAL_KEYS" envDefault:"10000" yaml:"max_local_keys"`

	// ShutdownPriority orders this cache's cleanup among other registered
	// resources. Lower runs earlier.
	ShutdownPriority int `env:"CACHE_SHUTDOWN_PRIORITY" envDefault:"50" yaml:"shutdown_priority"`

	// CloneOnRead makes local hits return deep copies.
	CloneOnRead bool `env:"CACHE_CLONE_ON_READ" yaml:"clone_on_read"`

	// SharedEnabled turns the shared tier on.
	SharedEnabled bool `env:"CACHE_SHARED_ENABLED" yaml:"shared_enabled"`
}

// DefaultConfig returns the settings used when no environment is provided.
func DefaultConfig() Config {
	return Config{
		Namespace:        "cache-service",
		LocalBackend:     BackendRistretto,
		DefaultTTL:       5 * time.Minute,
		CheckPeriod:      time.Minute,
		ProbeInterval:    5 * time.Second,
		MaxLocalKeys:     10000,
		ShutdownPriority: 50,
	}
}

// withDefaults fills zero values that would otherwise make the cache unusable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Namespace == "" {
		c.Namespace = d.Namespace
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = d.DefaultTTL
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.MaxLocalKeys < 0 {
		c.MaxLocalKeys = 0
	}
	return c
}
