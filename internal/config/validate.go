package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LibraryDir == c.Paths.ImportDir {
		return fmt.Errorf("paths.library_dir and paths.import_dir must differ (both are %s)", c.Paths.LibraryDir)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ErrorThreshold < 1 {
		return fmt.Errorf("pipeline.error_threshold must be at least 1, got %d", c.Pipeline.ErrorThreshold)
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.PollInterval < 1 {
		return fmt.Errorf("pipeline.poll_interval must be at least 1 second, got %d", c.Pipeline.PollInterval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be auto, console, or json, got %q", c.Logging.Format)
	}
}
