package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storaged/pkg/logger"
)

// envReader reads typed environment values. Unparsable values fall back to
// the default and are reported to the console log.
type envReader struct {
	log logger.ConsoleLogger
}

func (r *envReader) invalid(key, value string, defaultValue any, err error) {
	r.log.Warn(fmt.Sprintf("Ignoring invalid value %q for %s, using default %v", value, key, defaultValue), err)
}

func (r *envReader) str(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (r *envReader) integer(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
		r.invalid(key, value, defaultValue, err)
	}
	return defaultValue
}

func (r *envReader) int64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
		r.invalid(key, value, defaultValue, err)
	}
	return defaultValue
}

func (r *envReader) boolean(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		r.invalid(key, value, defaultValue, err)
	}
	return defaultValue
}

func (r *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
		r.invalid(key, value, defaultValue, err)
	}
	return defaultValue
}

func (r *envReader) float64(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return floatValue
		}
		r.invalid(key, value, defaultValue, err)
	}
	return defaultValue
}

// stringSlice parses comma-separated values
func (r *envReader) stringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value == "" {
			return defaultValue
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
