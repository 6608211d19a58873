// Package featureflags gates optional surfaces, such as the live session
// stream, on per-deployment environment toggles.
package featureflags

import (
	"os"
	"strings"
)

const envPrefix = "FLAG_"

// Enabled reports whether a flag is switched on for this deployment.
// Flags are read from env as FLAG_<NAME>=true/1/yes/on (case-insensitive);
// anything else, including an unset variable, means off.
func Enabled(name string) bool {
	v := os.Getenv(envPrefix + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
