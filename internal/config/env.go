// Package config resolves process settings for avatar commands from the
// environment.
package config

import (
	"os"
	"strconv"
)

// Environment variables read by the avatar commands.
const (
	EnvConfig   = "AVATAR_CONFIG"
	EnvWebPort  = "AVATAR_WEB_PORT"
	EnvLogLevel = "AVATAR_LOG_LEVEL"
	EnvLogFile  = "AVATAR_LOG_FILE"
	EnvServer   = "AVATAR_SERVER"
)

// Defaults used when neither a flag nor the environment sets a value.
const (
	DefaultWebPort  = 8080
	DefaultLogLevel = "info"
	DefaultServer   = "http://localhost:8080"
)

// ConfigPath returns the tracking config file from AVATAR_CONFIG, or "" when
// the built-in defaults should be used.
func ConfigPath() string {
	return os.Getenv(EnvConfig)
}

// WebPort returns AVATAR_WEB_PORT, or DefaultWebPort when it is unset or not
// a valid port number.
func WebPort() int {
	if v := os.Getenv(EnvWebPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port >= 0 && port <= 65535 {
			return port
		}
	}
	return DefaultWebPort
}

// LogLevel returns AVATAR_LOG_LEVEL or DefaultLogLevel.
func LogLevel() string {
	return getenv(EnvLogLevel, DefaultLogLevel)
}

// LogFile returns AVATAR_LOG_FILE, or "" for stderr only.
func LogFile() string {
	return os.Getenv(EnvLogFile)
}

// ServerURL returns AVATAR_SERVER or DefaultServer.
func ServerURL() string {
	return getenv(EnvServer, DefaultServer)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
