// Package config loads and validates the settings of a cloud login.
//
// Settings are merged from, lowest precedence first: built-in defaults, a
// YAML file, a .env file, the process environment and command-line flags.
// Only values that are set override lower layers.
package config
