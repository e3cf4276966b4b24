// Package config loads, normalizes, and validates storyreel configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the orchestrator and CLI need: directories, retry and breaker policy,
// resource ceilings, generator backends, and media settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical names, and clear validation errors.
package config
