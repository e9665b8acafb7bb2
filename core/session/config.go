package session

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds session store configuration.
type Config struct {
	// TableName is the database table or key namespace used by the persistence backend.
	TableName string `env:"SESSION_TABLE_NAME" envDefault:"sessions"`

	// Lifespan is how long a session stays valid in the backend (idle timeout).
	Lifespan time.Duration `env:"SESSION_LIFESPAN" envDefault:"24h"`

	// LongtermLifespan is the extended validity window for sessions flagged
	// as long-term ("remember me").
	LongtermLifespan time.Duration `env:"SESSION_LONGTERM_LIFESPAN" envDefault:"720h"`

	// MemoryLifespan is how long a session stays resident in the in-memory cache
	// without being accessed. Refreshed on every service.
	MemoryLifespan time.Duration `env:"SESSION_MEMORY_LIFESPAN" envDefault:"1h"`

	// MemorySweepInterval is the minimum time between in-memory expiry sweeps.
	MemorySweepInterval time.Duration `env:"SESSION_MEMORY_SWEEP_INTERVAL" envDefault:"1h"`

	// DatabaseSweepInterval is the minimum time between backend expiry sweeps.
	DatabaseSweepInterval time.Duration `env:"SESSION_DATABASE_SWEEP_INTERVAL" envDefault:"6h"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TableName:             "sessions",
		Lifespan:              24 * time.Hour,
		LongtermLifespan:      30 * 24 * time.Hour,
		MemoryLifespan:        time.Hour,
		MemorySweepInterval:   time.Hour,
		DatabaseSweepInterval: 6 * time.Hour,
	}
}

// LoadConfig parses the store configuration from environment variables.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}

// Option is a functional option for configuring the session store.
type Option func(*Config)

// WithTableName sets the database table or key namespace.
func WithTableName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.TableName = name
		}
	}
}

// WithLifespan sets the backend session validity window.
func WithLifespan(d time.Duration) Option {
	return func(c *Config) {
		c.Lifespan = d
	}
}

// WithLongtermLifespan sets the validity window for long-term sessions.
func WithLongtermLifespan(d time.Duration) Option {
	return func(c *Config) {
		c.LongtermLifespan = d
	}
}

// WithMemoryLifespan sets the in-memory residency window.
// The window slides forward on every successful service.
func WithMemoryLifespan(d time.Duration) Option {
	return func(c *Config) {
		c.MemoryLifespan = d
	}
}

// WithMemorySweepInterval sets the minimum time between in-memory expiry sweeps.
func WithMemorySweepInterval(d time.Duration) Option {
	return func(c *Config) {
		c.MemorySweepInterval = d
	}
}

// WithDatabaseSweepInterval sets the minimum time between backend expiry sweeps.
func WithDatabaseSweepInterval(d time.Duration) Option {
	return func(c *Config) {
		c.DatabaseSweepInterval = d
	}
}
