// Package config loads, normalizes and validates vinobench configuration
// from TOML. Configuration is resolved from an explicit --config path, then
// ~/.config/vinobench/config.toml, then ./vinobench.toml, falling back to
// built-in defaults when no file exists.
package config
