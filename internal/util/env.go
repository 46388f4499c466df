// Package util holds small helpers with no SlimLine dependencies.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads the named environment variable as a boolean toggle.
// Unset variables yield defaultValue; so do values outside the recognized
// set (true/1/yes/on, false/0/no/off, matched case-insensitively), with a
// warning so misconfigured flags are visible in the logs.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return defaultValue
	}
	switch raw {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: unrecognized boolean value, using default", "key", key, "value", raw, "default", defaultValue)
	return defaultValue
}
