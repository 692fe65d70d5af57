// Package config turns the process environment into a validated, immutable Config.
// Values come from defaults, an optional YAML file, the environment (optionally
// seeded from a .env file) and CLI flags, in increasing order of precedence.
// Validation failures are reported as a *ValidationError listing every offending key.
package config
