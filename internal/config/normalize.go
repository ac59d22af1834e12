package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizePipeline()
	c.normalizeValidation()
	if c.Storyboard.KeyFrames <= 0 {
		c.Storyboard.KeyFrames = defaultStoryboardKeyFrames
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Metrics.Textfile) != "" {
		if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
			return fmt.Errorf("metrics.textfile: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("MEDIASUITE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizePipeline() {
	agents := make([]string, 0, len(c.Pipeline.Agents))
	for _, id := range c.Pipeline.Agents {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			agents = append(agents, trimmed)
		}
	}
	c.Pipeline.Agents = agents
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.AgentTimeoutSeconds <= 0 {
		c.Pipeline.AgentTimeoutSeconds = defaultAgentTimeoutSeconds
	}
}

func (c *Config) normalizeValidation() {
	c.Validation.FFprobeBinary = strings.TrimSpace(c.Validation.FFprobeBinary)
	if c.Validation.FFprobeBinary == "" {
		c.Validation.FFprobeBinary = defaultFFprobeBinary
	}
}
