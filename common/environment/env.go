// Package environment overlays configuration values with environment
// variables.
//
// Every helper follows the same pattern: it reads the named variable and, only
// when the variable is set to a parseable non-empty value, overwrites *dst.
// Unset or malformed variables leave the existing value (typically loaded
// from the YAML file or a built-in default) untouched.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// String overwrites *dst with the named variable when it is non-empty.
func String(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// Int overwrites *dst with the named variable parsed as a decimal integer.
func Int(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Int64 is Int for 64-bit counters.
func Int64(name string, dst *int64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = n
	}
}

// Float overwrites *dst with the named variable parsed as a float64.
func Float(name string, dst *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

// Bool overwrites *dst with the named variable parsed by strconv.ParseBool.
func Bool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

// Duration overwrites *dst with the named variable parsed as a
// time.Duration (e.g. "30s", "5m").
func Duration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

// StringSlice overwrites *dst with the named variable split on commas. Empty
// elements are dropped; a variable holding only separators is ignored.
func StringSlice(name string, dst *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
