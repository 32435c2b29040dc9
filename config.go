package provepool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the Pool.
type Config struct {
	// PoolSize is the fixed number of execution contexts. Each context
	// holds a fully initialized prover, which is memory-heavy, so the
	// practical size is small.
	PoolSize int `yaml:"pool_size"`

	// JobTimeout bounds the wait for a terminal message after dispatch.
	// On expiry the job's future rejects with ErrTimeout; the context is
	// not assumed crashed and keeps its slot until it replies. Zero
	// disables the timeout.
	JobTimeout time.Duration `yaml:"-"`

	// QueueWarnDepth makes the pool log a warning whenever the backlog
	// reaches this depth. The queue itself is unbounded; the warning is a
	// capacity-planning signal for operators, never an enforced limit.
	// Zero disables the warning.
	QueueWarnDepth int `yaml:"queue_warn_depth"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:       2,
		JobTimeout:     0,
		QueueWarnDepth: 64,
	}
}

// Validate checks the configuration for construction-time errors.
func (c Config) Validate() error {
	if c.PoolSize < 1 {
		return ErrInvalidPoolSize
	}
	return nil
}

// yamlConfig mirrors Config for file decoding, with the timeout as a
// duration string ("90s", "2m").
type yamlConfig struct {
	PoolSize       int    `yaml:"pool_size"`
	JobTimeout     string `yaml:"job_timeout"`
	QueueWarnDepth int    `yaml:"queue_warn_depth"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := yamlConfig{
		PoolSize:       c.PoolSize,
		QueueWarnDepth: c.QueueWarnDepth,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.PoolSize = raw.PoolSize
	c.QueueWarnDepth = raw.QueueWarnDepth

	if raw.JobTimeout != "" {
		d, err := time.ParseDuration(raw.JobTimeout)
		if err != nil {
			return fmt.Errorf("provepool: parse job_timeout %q: %w", raw.JobTimeout, err)
		}
		c.JobTimeout = d
	}

	return nil
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("provepool: read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("provepool: parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
