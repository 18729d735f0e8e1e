// Package config loads and validates recitald's TOML configuration.
package config
