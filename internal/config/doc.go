// Package config provides configuration loading and validation for the
// Wyoming speech-to-text bridge. Settings come from an optional YAML file
// overridden by environment variables, and are validated once at startup;
// the rest of the service assumes a valid, immutable configuration.
package config
