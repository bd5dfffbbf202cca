package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateDirConfig(&config.Dir); err != nil {
		return fmt.Errorf("dir config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s cannot be negative", config.Watch.Debounce)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q (expected text or json)", config.Log.Format)
	}

	if strings.Contains(config.PathPrefix, "..") {
		return fmt.Errorf("path prefix contains traversal: %s", config.PathPrefix)
	}

	return nil
}

func validateDirConfig(config *DirConfig) error {
	for name, path := range map[string]string{"input": config.Input, "output": config.Output} {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid %s directory '%s': %w", name, path, err)
		}
	}

	if filepath.Clean(config.Input) == filepath.Clean(config.Output) {
		return fmt.Errorf("input and output directories must differ: %s", config.Input)
	}

	for name, path := range map[string]string{"data": config.Data, "includes": config.Includes} {
		if path == "" {
			return fmt.Errorf("%s directory cannot be empty", name)
		}
		if filepath.IsAbs(path) || strings.Contains(filepath.Clean(path), "..") {
			return fmt.Errorf("%s directory must stay inside the input directory: %s", name, path)
		}
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
