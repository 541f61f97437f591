// Package config loads, validates, and normalizes lumen's TOML
// configuration.
//
// Configuration resolves from an explicit path, ~/.config/lumen/config.toml,
// or ./lumen.toml, falling back to built-in defaults when no file exists.
// Path fields are tilde-expanded and made absolute during normalization.
package config
