// Package config loads, validates, and normalizes crucible's TOML
// configuration. It owns the default values, path expansion, and the
// embedded sample config written by "crucible config init".
package config
