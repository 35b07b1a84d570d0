package config

import (
	"os"
	"strings"
	"sync"
)

// EnvPrefix marks the environment variables the overlay picks up:
// PARTGEN_DATABASE_HOST becomes the "database.host" key.
const EnvPrefix = "PARTGEN_"

// Config manages tool configuration
type Config struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates a configuration manager seeded with connection defaults.
func New() *Config {
	return &Config{
		values: map[string]string{
			"database.host":    "localhost",
			"database.port":    "5432",
			"database.user":    "postgres",
			"database.dbname":  "postgres",
			"database.sslmode": "prefer",
		},
	}
}

// Get retrieves a configuration value
func (c *Config) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// GetWithDefault retrieves a configuration value, falling back when the
// key is unset or empty.
func (c *Config) GetWithDefault(key, fallback string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return fallback
}

// GetAll returns a copy of all configuration values
func (c *Config) GetAll() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copy := make(map[string]string)
	for k, v := range c.values {
		copy[k] = v
	}
	return copy
}

// Update updates configuration values
func (c *Config) Update(values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range values {
		c.values[k] = v
	}
}

// Set updates a single configuration value
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// LoadEnv overlays PARTGEN_-prefixed environment variables onto the
// current values. Underscores in the variable name map to dots in the
// key.
func (c *Config) LoadEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		key = strings.ReplaceAll(key, "_", ".")
		c.values[key] = value
	}
}
