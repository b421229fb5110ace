package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ConfigResolver provides unified configuration resolution with precedence:
// 1. Environment variables (envPrefix + key)
// 2. Config file values
// 3. Default values
type ConfigResolver struct {
	configData map[string]interface{}
	envPrefix  string
}

// NewConfigResolver wraps an already decoded config tree. A nil tree is valid:
// environment variables and defaults are used.
func NewConfigResolver(data map[string]interface{}, envPrefix string) *ConfigResolver {
	return &ConfigResolver{configData: data, envPrefix: envPrefix}
}

// GetString resolves a string configuration value with precedence: env → file → default
func (cr *ConfigResolver) GetString(configKey, envKey, defaultValue string) string {
	if envValue, ok := cr.lookupEnv(envKey); ok {
		return envValue
	}
	if value, exists := cr.getNestedValue(configKey); exists {
		if str, ok := cr.toString(value); ok {
			return str
		}
	}
	return defaultValue
}

// GetInt resolves an integer configuration value with precedence: env → file → default
func (cr *ConfigResolver) GetInt(configKey, envKey string, defaultValue int) int {
	if envValue, ok := cr.lookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(envValue); err == nil {
			return parsed
		}
	}
	if value, exists := cr.getNestedValue(configKey); exists {
		if intVal, ok := cr.toInt(value); ok {
			return intVal
		}
	}
	return defaultValue
}

// GetBool resolves a boolean configuration value with precedence: env → file → default
func (cr *ConfigResolver) GetBool(configKey, envKey string, defaultValue bool) bool {
	if envValue, ok := cr.lookupEnv(envKey); ok {
		if b, ok := cr.toBool(envValue); ok {
			return b
		}
	}
	if value, exists := cr.getNestedValue(configKey); exists {
		if boolVal, ok := cr.toBool(value); ok {
			return boolVal
		}
	}
	return defaultValue
}

// GetDuration accepts Go duration strings ("30s") or a bare number of seconds.
func (cr *ConfigResolver) GetDuration(configKey, envKey string, defaultValue time.Duration) time.Duration {
	if envValue, ok := cr.lookupEnv(envKey); ok {
		if d, ok := cr.toDuration(envValue); ok {
			return d
		}
	}
	if value, exists := cr.getNestedValue(configKey); exists {
		if d, ok := cr.toDuration(value); ok {
			return d
		}
	}
	return defaultValue
}

// Has reports whether the key is set either in the environment or in the file.
func (cr *ConfigResolver) Has(configKey, envKey string) bool {
	if _, ok := cr.lookupEnv(envKey); ok {
		return true
	}
	_, ok := cr.getNestedValue(configKey)
	return ok
}

// HasConfigFile returns true if a config tree was supplied
func (cr *ConfigResolver) HasConfigFile() bool {
	return cr.configData != nil
}

// Section returns the keys directly under a dotted path, e.g. "loggers".
func (cr *ConfigResolver) Section(path string) []string {
	value, ok := cr.getNestedValue(path)
	if !ok {
		return nil
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func (cr *ConfigResolver) lookupEnv(envKey string) (string, bool) {
	if envKey == "" {
		return "", false
	}
	v, ok := os.LookupEnv(cr.envPrefix + envKey)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (cr *ConfigResolver) getNestedValue(key string) (interface{}, bool) {
	if cr.configData == nil {
		return nil, false
	}

	parts := strings.Split(key, ".")
	current := cr.configData

	for i, part := range parts {
		value, exists := current[part]
		if !exists {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		next, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}

	return nil, false
}

func (cr *ConfigResolver) toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func (cr *ConfigResolver) toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func (cr *ConfigResolver) toBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	}
	return false, false
}

func (cr *ConfigResolver) toDuration(value interface{}) (time.Duration, bool) {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if d, err := time.ParseDuration(s); err == nil {
			return d, true
		}
	}
	if n, ok := cr.toInt(value); ok {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

// EnvKey turns a logger name and camelCase key into NAME_CAMEL_CASE.
func EnvKey(loggerName, key string) string {
	var sb strings.Builder
	for _, r := range loggerName {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteByte('_')
		}
	}
	sb.WriteByte('_')
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			sb.WriteByte('_')
		}
		sb.WriteRune(unicode.ToUpper(r))
	}
	return sb.String()
}
