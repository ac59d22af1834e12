// Package config loads, normalizes, and validates mediasuite configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIASUITE_LOG_LEVEL. The Config type centralizes every knob the CLI and the
// orchestrator need: data and log directories, the agent pipeline, output
// validation thresholds and metrics export.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
