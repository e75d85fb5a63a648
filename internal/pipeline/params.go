package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"longbox/internal/config"
)

// Params is the immutable configuration of one pipeline run, resolved once
// at start-of-run. Every stage receives the full set; stages never read
// mutable global state.
type Params struct {
	ErrorThreshold     int
	BatchSize          int
	SkipMetadata       bool
	SkipBlockingPages  bool
	TargetDirectory    string
	RenamingRule       string
	DeleteRemovedFiles bool
}

// DefaultParams derives run parameters from configuration.
func DefaultParams(cfg *config.Config) Params {
	return Params{
		ErrorThreshold:  cfg.Pipeline.ErrorThreshold,
		BatchSize:       cfg.Pipeline.BatchSize,
		TargetDirectory: cfg.Paths.LibraryDir,
		RenamingRule:    cfg.Pipeline.RenamingRule,
	}
}

// WithOverrides applies key=value overrides (CLI or API supplied) and
// returns the resulting parameter set. Unknown keys are rejected.
func (p Params) WithOverrides(overrides map[string]string) (Params, error) {
	for key, value := range overrides {
		switch key {
		case "errorThreshold":
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 1 {
				return p, fmt.Errorf("errorThreshold must be a positive integer, got %q", value)
			}
			p.ErrorThreshold = parsed
		case "batchSize":
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 1 {
				return p, fmt.Errorf("batchSize must be a positive integer, got %q", value)
			}
			p.BatchSize = parsed
		case "skipMetadata":
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return p, fmt.Errorf("skipMetadata must be a boolean, got %q", value)
			}
			p.SkipMetadata = parsed
		case "skipBlockingPages":
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return p, fmt.Errorf("skipBlockingPages must be a boolean, got %q", value)
			}
			p.SkipBlockingPages = parsed
		case "targetDirectory":
			if strings.TrimSpace(value) == "" {
				return p, fmt.Errorf("targetDirectory must not be empty")
			}
			p.TargetDirectory = value
		case "renamingRule":
			if strings.TrimSpace(value) == "" {
				return p, fmt.Errorf("renamingRule must not be empty")
			}
			p.RenamingRule = value
		case "deleteRemovedFiles":
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return p, fmt.Errorf("deleteRemovedFiles must be a boolean, got %q", value)
			}
			p.DeleteRemovedFiles = parsed
		default:
			return p, fmt.Errorf("unknown run parameter %q", key)
		}
	}
	return p, nil
}

// ParseOverrides converts "key=value" strings into an override map.
func ParseOverrides(pairs []string) (map[string]string, error) {
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", pair)
		}
		overrides[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return overrides, nil
}
