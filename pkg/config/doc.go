// Package config loads and validates the application configuration from a
// YAML file, environment overrides, and built-in defaults.
package config
