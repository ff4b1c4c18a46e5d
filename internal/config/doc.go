// Package config loads, normalizes, and validates notesflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NOTESFLOW_API_KEY and OPENROUTER_API_KEY. The Config type centralizes every
// knob the pipeline and CLI need, including the LLM submission thresholds and
// the default prompt.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
