// Package config loads, normalizes, and validates clipforge configuration
// from TOML with sane defaults for every section.
package config
