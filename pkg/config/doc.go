// Package config loads gateway configuration from the user config
// directory (default ~/.claude-proxy): provider keys and upstream URLs from
// a dotenv file, and model alias overrides from an optional aliases.yaml.
// Both files can be hot-reloaded while the gateway is running.
package config
