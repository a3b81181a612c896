package session

// Config holds registry initialization parameters.
type Config struct {
	Codec string `json:"codec,omitempty" yaml:"codec,omitempty"` // Registered codec name.
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{Codec: "raw"}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Codec != "" {
		c.Codec = source.Codec
	}
}

// New creates a Registry from configuration.
func New(cfg *Config) (*Registry, error) {
	codec, err := GetCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return NewRegistry(codec), nil
}
