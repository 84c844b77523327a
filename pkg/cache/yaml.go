package cache

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML implements custom YAML decoding for Config so duration
// fields accept Go duration strings ("5m", "30s") in addition to
// integer nanoseconds.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled         bool      `yaml:"enabled"`
		Strategy        Strategy  `yaml:"strategy"`
		MaxSize         int       `yaml:"max_size"`
		TTL             yaml.Node `yaml:"ttl"`
		CleanupInterval yaml.Node `yaml:"cleanup_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Enabled = raw.Enabled
	c.Strategy = raw.Strategy
	c.MaxSize = raw.MaxSize

	var err error
	if c.TTL, err = decodeDuration(&raw.TTL, "ttl"); err != nil {
		return err
	}
	if c.CleanupInterval, err = decodeDuration(&raw.CleanupInterval, "cleanup_interval"); err != nil {
		return err
	}
	return nil
}

// decodeDuration parses a YAML node as either a duration string or
// integer nanoseconds. An absent node yields zero.
func decodeDuration(node *yaml.Node, field string) (time.Duration, error) {
	if node.Kind == 0 {
		return 0, nil
	}

	var str string
	if err := node.Decode(&str); err == nil {
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", field, err)
		}
		return d, nil
	}

	var nsec int64
	if err := node.Decode(&nsec); err != nil {
		return 0, fmt.Errorf("field %s must be a duration string (e.g. '5m') or integer nanoseconds", field)
	}
	return time.Duration(nsec), nil
}
