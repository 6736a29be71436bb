// Package config loads, normalizes, and validates elodie configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the ELODIE_CONFIG_DIR environment
// override. The Config value is built once at startup and handed to every
// component explicitly; nothing in the repository reads configuration from
// package-level state.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
