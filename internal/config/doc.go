// Package config loads and validates the TOML configuration shared by the
// longbox CLI and daemon.
package config
