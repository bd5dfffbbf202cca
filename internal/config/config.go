// Package config provides configuration management for folio builds using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Two environment variables keep their historical names: ELEVENTY_PRODUCTION
// selects production mode when set to any non-empty value, and
// GITHUB_REPOSITORY ("owner/name") sets the URL path prefix to "name" so the
// site can be served from a GitHub Pages project path. Everything else uses
// the FOLIO_ prefix (FOLIO_SERVER_PORT, FOLIO_INPUT, ...).
//
// A Config is computed once at startup and is not modified afterwards.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variables read outside the FOLIO_ namespace.
const (
	EnvProduction = "ELEVENTY_PRODUCTION"
	EnvRepository = "GITHUB_REPOSITORY"
)

// Mode selects production or development behaviour
type Mode int

const (
	ModeDevelopment Mode = iota
	ModeProduction
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModeProduction:
		return "production"
	default:
		return "unknown"
	}
}

// ModeFromEnv maps the raw ELEVENTY_PRODUCTION value to a Mode. Any
// non-empty value means production.
func ModeFromEnv(value string) Mode {
	if value != "" {
		return ModeProduction
	}
	return ModeDevelopment
}

// PathPrefixFromRepository returns the "name" half of an "owner/name"
// repository identifier, or "" when there is none.
func PathPrefixFromRepository(repo string) string {
	parts := strings.Split(repo, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

type Config struct {
	Mode       Mode         `yaml:"-"`
	PathPrefix string       `yaml:"-"`
	Dir        DirConfig    `yaml:"dir"`
	Server     ServerConfig `yaml:"server"`
	Watch      WatchConfig  `yaml:"watch"`
	Log        LogConfig    `yaml:"log"`
}

type DirConfig struct {
	Input    string `yaml:"input"`
	Output   string `yaml:"output"`
	Data     string `yaml:"data"`     // relative to Input
	Includes string `yaml:"includes"` // relative to Input
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataDir returns the data directory path
func (c *Config) DataDir() string {
	return filepath.Join(c.Dir.Input, c.Dir.Data)
}

// IncludesDir returns the layouts directory path
func (c *Config) IncludesDir() string {
	return filepath.Join(c.Dir.Input, c.Dir.Includes)
}

// InputPath joins elem onto the input directory
func (c *Config) InputPath(elem ...string) string {
	return filepath.Join(append([]string{c.Dir.Input}, elem...)...)
}

// IsProduction reports whether the build runs in production mode
func (c *Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir.input", "src")
	v.SetDefault("dir.output", "_site")
	v.SetDefault("dir.data", "_data")
	v.SetDefault("dir.includes", "_includes")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv wires the FOLIO_ prefix and the two unprefixed variables onto v
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("production", EnvProduction); err != nil {
		return err
	}
	return v.BindEnv("repository", EnvRepository)
}

// LoadDotEnv loads variables from .env style files into the process
// environment. Missing files are ignored and existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from v. Defaults are applied for unset keys.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := Config{
		Dir: DirConfig{
			Input:    v.GetString("dir.input"),
			Output:   v.GetString("dir.output"),
			Data:     v.GetString("dir.data"),
			Includes: v.GetString("dir.includes"),
		},
		Server: ServerConfig{
			Host: v.GetString("server.host"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	port, err := intValue(v, "server.port")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = port

	debounce, err := durationValue(v, "watch.debounce")
	if err != nil {
		return nil, err
	}
	cfg.Watch.Debounce = debounce

	cfg.Mode = ModeFromEnv(v.GetString("production"))
	cfg.PathPrefix = PathPrefixFromRepository(v.GetString("repository"))

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
