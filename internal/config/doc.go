// Package config provides configuration loading and validation for the Zoom
// poll automation service. It handles YAML-based configuration with struct
// validation, default filling, and environment overrides for secrets.
package config
