// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/pagestream/internal/log"
)

// parseEnv reads key with parse. Unset or empty variables and values that do
// not parse fall back to defaultValue; every choice is logged at debug level,
// invalid values at warn level.
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")

	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		msg := "using default value"
		if ok {
			msg = "using default value (environment variable is empty)"
		}
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg(msg)
		return defaultValue
	}

	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid environment variable, using default")
		return defaultValue
	}

	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		// For sensitive vars, just log that it was set
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", parsed)
	}
	ev.Msg("using environment variable")
	return parsed
}

func isSensitive(key string) bool {
	lowerKey := strings.ToLower(key)
	return strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(v string) (string, error) { return v, nil })
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(v string) (bool, error) {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", v)
	})
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

// ParseList reads a comma-separated list. Blank entries are dropped; a
// variable holding only separators yields an empty list.
func ParseList(key string, defaultValue []string) []string {
	return parseEnv(key, defaultValue, func(v string) ([]string, error) {
		out := []string{}
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	})
}

// expandEnv expands environment variables in the format ${VAR} or $VAR
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
