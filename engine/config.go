package engine

import (
	"time"

	"github.com/wzf03/citabridge/core/config"
)

const defaultTimeout = 10 * time.Second

// Config holds engine invocation parameters.
type Config struct {
	Path    string          `json:"path,omitempty" yaml:"path,omitempty"`       // Engine executable.
	Args    []string        `json:"args,omitempty" yaml:"args,omitempty"`       // Extra arguments; the reference engine takes none.
	Dir     string          `json:"dir,omitempty" yaml:"dir,omitempty"`         // Working directory; empty inherits.
	Timeout config.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"` // Per-move limit; negative disables, 0 keeps the default.
}

// DefaultConfig returns the default engine configuration. The reference
// engine is built to build/Cita relative to the working directory.
func DefaultConfig() Config {
	return Config{
		Path:    "build/Cita",
		Timeout: config.Duration(defaultTimeout),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if len(source.Args) > 0 {
		c.Args = source.Args
	}
	if source.Dir != "" {
		c.Dir = source.Dir
	}
	if source.Timeout != 0 {
		c.Timeout = source.Timeout
	}
}
