// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Getenv reads an environment variable or returns a default value.
func Getenv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetenvInt parses an environment variable as an integer, else returns a default value.
func GetenvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// GetenvDuration parses an environment variable with time.ParseDuration, else returns a default.
func GetenvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
