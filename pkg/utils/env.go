package utils

import (
	"os"
	"strconv"
)

// Env returns the value of an environment variable or a default.
func Env(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// EnvInt returns a positive integer environment value or a default.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
