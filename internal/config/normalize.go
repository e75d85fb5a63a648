package config

import "strings"

// normalize expands user paths and fills empty values with defaults.
func (c *Config) normalize() error {
	defaults := Default()

	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaults.Paths.LibraryDir
	}
	if strings.TrimSpace(c.Paths.ImportDir) == "" {
		c.Paths.ImportDir = defaults.Paths.ImportDir
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaults.Paths.CacheDir
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaults.Paths.LogDir
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaults.Paths.APIBind
	}

	for _, dir := range []*string{
		&c.Paths.LibraryDir,
		&c.Paths.ImportDir,
		&c.Paths.CacheDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
	} {
		expanded, err := expandPath(*dir)
		if err != nil {
			return err
		}
		*dir = expanded
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Pipeline.ErrorThreshold == 0 {
		c.Pipeline.ErrorThreshold = defaults.Pipeline.ErrorThreshold
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = defaults.Pipeline.BatchSize
	}
	if strings.TrimSpace(c.Pipeline.RenamingRule) == "" {
		c.Pipeline.RenamingRule = defaults.Pipeline.RenamingRule
	}
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = defaults.Pipeline.PollInterval
	}
	if strings.TrimSpace(c.Metadata.BaseURL) == "" {
		c.Metadata.BaseURL = defaults.Metadata.BaseURL
	}
	if c.Metadata.RequestTimeout == 0 {
		c.Metadata.RequestTimeout = defaults.Metadata.RequestTimeout
	}
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaults.Notifications.RequestTimeout
	}

	return nil
}
