package poller

import (
	"time"

	"github.com/wzf03/citabridge/core/config"
)

const defaultRetryDelay = 5 * time.Second

// Config holds poller initialization parameters.
type Config struct {
	URL        string          `json:"url,omitempty" yaml:"url,omitempty"`                 // Platform long-poll endpoint.
	RetryDelay config.Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"` // Wait between failed exchanges.
	MaxRetries int             `json:"max_retries,omitempty" yaml:"max_retries,omitempty"` // 0 retries forever.
}

// DefaultConfig returns the default poller configuration. The URL has no
// default.
func DefaultConfig() Config {
	return Config{
		RetryDelay: config.Duration(defaultRetryDelay),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.URL != "" {
		c.URL = source.URL
	}
	if source.RetryDelay > 0 {
		c.RetryDelay = source.RetryDelay
	}
	if source.MaxRetries > 0 {
		c.MaxRetries = source.MaxRetries
	}
}
