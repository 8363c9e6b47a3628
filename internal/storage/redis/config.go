package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	Enabled bool `yaml:"enabled"`

	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string `yaml:"url"`

	// Pool settings
	PoolSize     int `yaml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns"`

	// KeyTTL expires settings of players who have not been seen for a while.
	// Zero keeps records forever.
	KeyTTL time.Duration `yaml:"key_ttl"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		KeyTTL:       90 * 24 * time.Hour,
	}
}
