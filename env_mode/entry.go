// Package env_mode resolves which configuration profile the host is
// running under, mirroring the teacher's environment-mode detection.
package env_mode

import (
	"os"
	"strings"
	"sync"
)

// EnvKey is the environment variable pluginctl and the host library
// read to pick a configuration profile.
const EnvKey = "PLUGINHOST_ENV"

// Mode names a configuration profile a Bootstrap can be loaded under.
type Mode string

const (
	DevMode  Mode = "development"
	ProdMode Mode = "production"
	TestMode Mode = "test"
)

var (
	current  Mode
	modeOnce sync.Once
)

// ParseMode normalizes an environment variable value to a Mode,
// defaulting to DevMode for anything unrecognized.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "development", "dev", "":
		return DevMode
	case "production", "prod":
		return ProdMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Current returns the process's configuration profile, read from EnvKey
// once and cached for the life of the process.
func Current() Mode {
	modeOnce.Do(func() {
		current = ParseMode(os.Getenv(EnvKey))
	})
	return current
}

// SetCurrent overrides EnvKey for the current process, for tests that
// need to exercise a specific profile without touching the real shell
// environment.
func SetCurrent(m Mode) {
	os.Setenv(EnvKey, string(m))
	current = m
}
