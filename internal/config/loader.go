package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SILK"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from configPath, applies SILK_* environment overrides
// and validates the result.
// A missing file at the default location is not an error: defaults are used.
func Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath()
	}

	cfg := Defaults()

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// optional
	default:
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run without -config", absPath)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg = applyConfigDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays SILK_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var env EnvOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read %s_* environment: %w", envPrefix, err)
	}
	if env.LogLevel != "" {
		cfg.Service.LogLevel = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Service.LogFormat = env.LogFormat
	}
	if env.StatePath != "" {
		cfg.State.Path = env.StatePath
	}
	if env.DebugListen != "" {
		cfg.Debug.Listen = env.DebugListen
	}
	if len(env.PackageDirs) > 0 {
		cfg.PackageDirs = append(cfg.PackageDirs, env.PackageDirs...)
	}
	return nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Locale == "" {
		cfg.Locale = defaults.Locale
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	cfg.Service.LogFormat = strings.ToLower(cfg.Service.LogFormat)

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", c.Service.LogLevel)
	}
	if c.Service.LogFormat != "json" && c.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", c.Service.LogFormat)
	}

	if c.Debug.Listen != "" {
		host, _, err := net.SplitHostPort(c.Debug.Listen)
		if err != nil {
			return fmt.Errorf("debug.listen: %w", err)
		}
		if host != "localhost" {
			ip := net.ParseIP(host)
			if ip == nil || !ip.IsLoopback() {
				return fmt.Errorf("debug.listen must be a loopback address (got %q)", c.Debug.Listen)
			}
		}
	}

	for i, dir := range c.PackageDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("package_dirs[%d] is empty", i)
		}
	}
	return nil
}
