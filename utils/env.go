package utils

import (
	"os"
	"slices"
	"strings"
	"time"

	"go.viam.com/rscapture/logging"
)

const (
	// ReadTimeoutEnvVar is the environment variable that can be set to override the configured
	// bound on a single frame read, e.g. "500ms". "0" disables the bound.
	ReadTimeoutEnvVar = "RSCAPTURE_READ_TIMEOUT"

	// BackendEnvVar is the environment variable that can be set to override the configured
	// backend name.
	BackendEnvVar = "RSCAPTURE_BACKEND"

	// DebugEnvVar enables debug logging in the CLI when set to a true value.
	DebugEnvVar = "RSCAPTURE_DEBUG"
)

// EnvTrueValues contains strings that we interpret as boolean true in env vars.
var EnvTrueValues = []string{"true", "yes", "1", "TRUE", "YES"}

// GetReadTimeout returns the read timeout from the environment if set, defaultTimeout otherwise.
func GetReadTimeout(defaultTimeout time.Duration, logger logging.Logger) time.Duration {
	return timeoutHelper(defaultTimeout, ReadTimeoutEnvVar, logger)
}

// GetBackend returns the backend name from the environment if set, defaultBackend otherwise.
func GetBackend(defaultBackend string) string {
	if backend := strings.TrimSpace(os.Getenv(BackendEnvVar)); backend != "" {
		return backend
	}
	return defaultBackend
}

// DebugEnabled reports whether debug logging was requested through the environment.
func DebugEnabled() bool {
	return slices.Contains(EnvTrueValues, os.Getenv(DebugEnvVar))
}

func timeoutHelper(defaultTimeout time.Duration, timeoutEnvVar string, logger logging.Logger) time.Duration {
	if timeoutVal := os.Getenv(timeoutEnvVar); timeoutVal != "" {
		if timeoutVal == "0" {
			return 0
		}
		timeout, err := time.ParseDuration(timeoutVal)
		if err != nil || timeout < 0 {
			logger.Warnw("failed to parse env var, falling back to default timeout",
				"env_var", timeoutEnvVar, "value", timeoutVal, "default", defaultTimeout)
			return defaultTimeout
		}
		return timeout
	}
	return defaultTimeout
}
