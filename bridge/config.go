package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wzf03/citabridge/engine"
	"github.com/wzf03/citabridge/poller"
	"github.com/wzf03/citabridge/session"
)

const defaultWorkers = 1

// Config holds initialization parameters for all bridge subsystems.
// Each subsystem section delegates to that subsystem's constructor.
type Config struct {
	Session   session.Config `json:"session" yaml:"session"`
	Poller    poller.Config  `json:"poller" yaml:"poller"`
	Engine    engine.Config  `json:"engine" yaml:"engine"`
	Workers   int            `json:"workers,omitempty" yaml:"workers,omitempty"`       // Concurrent engine runs; 1 keeps the reference order.
	MaxCycles int            `json:"max_cycles,omitempty" yaml:"max_cycles,omitempty"` // 0 runs until cancelled.
	Observer  string         `json:"observer,omitempty" yaml:"observer,omitempty"`     // Registered observer name.
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Session:  session.DefaultConfig(),
		Poller:   poller.DefaultConfig(),
		Engine:   engine.DefaultConfig(),
		Workers:  defaultWorkers,
		Observer: "slog",
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Session.Merge(&source.Session)
	c.Poller.Merge(&source.Poller)
	c.Engine.Merge(&source.Engine)

	if source.Workers > 0 {
		c.Workers = source.Workers
	}
	if source.MaxCycles > 0 {
		c.MaxCycles = source.MaxCycles
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON or YAML (.yaml, .yml) config file, merges it with
// defaults, and returns the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
