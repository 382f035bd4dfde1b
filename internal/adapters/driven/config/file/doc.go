// Package file loads pipeline configuration from a TOML file with
// environment-variable overrides. Missing keys fall back to the built-in
// defaults.
package file
