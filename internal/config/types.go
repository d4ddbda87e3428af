package config

import (
	"os"
	"path/filepath"
)

// Config represents the complete helper configuration.
type Config struct {
	Service     ServiceConfig `yaml:"service"`
	State       StateConfig   `yaml:"state"`
	Debug       DebugConfig   `yaml:"debug,omitempty"`
	Locale      string        `yaml:"locale,omitempty"`
	PackageDirs []string      `yaml:"package_dirs,omitempty"`
}

// ServiceConfig defines core process settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines package state storage settings.
type StateConfig struct {
	// Path of the SQLite database. Empty disables persistent package state.
	Path string `yaml:"path"`
}

// DebugConfig defines the optional diagnostics HTTP server.
type DebugConfig struct {
	// Listen is a loopback address such as 127.0.0.1:7411. Empty disables the server.
	Listen string `yaml:"listen"`
}

// EnvOverrides holds values read from SILK_* environment variables.
// Empty values leave the file configuration untouched.
type EnvOverrides struct {
	LogLevel    string   `envconfig:"LOG_LEVEL"`
	LogFormat   string   `envconfig:"LOG_FORMAT"`
	StatePath   string   `envconfig:"STATE_PATH"`
	DebugListen string   `envconfig:"DEBUG_LISTEN"`
	PackageDirs []string `envconfig:"PACKAGE_DIRS"`
}

// SilkHome returns the per-user silkedit directory ($HOME/.silk).
func SilkHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".silk"
	}
	return filepath.Join(home, ".silk")
}

// DefaultPath returns the default helper configuration file path.
func DefaultPath() string {
	return filepath.Join(SilkHome(), "helper.yml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "silkedit-helper",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: filepath.Join(SilkHome(), "helper", "state.db"),
		},
		Locale: "en",
	}
}
