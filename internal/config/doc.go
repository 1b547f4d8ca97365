// Package config loads and validates the linepulse server configuration
// from a YAML file, with env-var indirection for secrets and optional
// fsnotify-based hot reload of alert thresholds.
package config
