// Package config loads, normalizes, and validates shelver configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment fallbacks the
// container images rely on (INPUT_PATH, OUTPUT_PATH, CONFIG_PATH, DEBUG,
// DRY_RUN). The Config type is passed explicitly into every pipeline
// component; nothing downstream reads ambient state.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
