// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		envSet       bool
		want         string
	}{
		{"environment variable set", "TEST_STRING", "default", "from-env", true, "from-env"},
		{"environment variable not set", "TEST_STRING_UNSET", "default", "", false, "default"},
		{"environment variable empty string", "TEST_STRING_EMPTY", "default", "", true, "default"},
		{"sensitive variable (password)", "TEST_PASSWORD", "default", "secret123", true, "secret123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := ParseString(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty")
	t.Setenv("TEST_INT_EMPTY", "")

	assert.Equal(t, 42, ParseInt("TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("TEST_INT_BAD", 1), "invalid values fall back")
	assert.Equal(t, 1, ParseInt("TEST_INT_EMPTY", 1))
	assert.Equal(t, 7, ParseInt("TEST_INT_UNSET", 7))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_DURATION_BAD", "250")

	assert.Equal(t, 250*time.Millisecond, ParseDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, ParseDuration("TEST_DURATION_BAD", time.Second))
	assert.Equal(t, time.Second, ParseDuration("TEST_DURATION_UNSET", time.Second))
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		envSet       bool
		want         bool
	}{
		{"true string", false, "true", true, true},
		{"TRUE uppercase", false, "TRUE", true, true},
		{"1 as true", false, "1", true, true},
		{"yes as true", false, "yes", true, true},
		{"false string", true, "false", true, false},
		{"0 as false", true, "0", true, false},
		{"no as false", true, "no", true, false},
		{"invalid boolean", true, "maybe", true, true},
		{"empty string", true, "", true, true},
		{"not set", false, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "TEST_BOOL"
			if tt.envSet {
				t.Setenv(key, tt.envValue)
			}
			if got := ParseBool(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_FLOAT_BAD", "quarter")

	assert.InDelta(t, 0.25, ParseFloat("TEST_FLOAT", 1), 1e-9)
	assert.InDelta(t, 1.0, ParseFloat("TEST_FLOAT_BAD", 1), 1e-9)
}

func TestParseList(t *testing.T) {
	t.Setenv("TEST_LIST", " script, link ,,")
	t.Setenv("TEST_LIST_SEPARATORS", ",")

	assert.Equal(t, []string{"script", "link"}, ParseList("TEST_LIST", nil))
	assert.Equal(t, []string{}, ParseList("TEST_LIST_SEPARATORS", []string{"x"}))
	assert.Equal(t, []string{"x"}, ParseList("TEST_LIST_UNSET", []string{"x"}))
}
