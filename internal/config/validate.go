package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	seen := make(map[string]struct{}, len(c.Pipeline.Agents))
	for _, id := range c.Pipeline.Agents {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("pipeline.agents: duplicate agent %q", id)
		}
		seen[id] = struct{}{}
	}
	if c.Pipeline.Retries < 0 {
		return errors.New("pipeline.retries must be zero or positive")
	}
	if c.Pipeline.Retries > 5 {
		return errors.New("pipeline.retries must not exceed 5")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.MinVideoBytes < 0 {
		return errors.New("validation.min_video_bytes must be zero or positive")
	}
	if c.Validation.MinStoryboardBytes < 0 {
		return errors.New("validation.min_storyboard_bytes must be zero or positive")
	}
	return nil
}
