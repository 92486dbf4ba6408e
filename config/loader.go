// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
	FormatTOML ConfigFormat = "toml"
)

// FormatFromPath determines the configuration format from a file extension
func FormatFromPath(path string) (ConfigFormat, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	paths := []string{".", "./config", "./configs"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".stagehand"))
	}
	return &Loader{
		searchPaths:   paths,
		envPrefix:     "STAGEHAND",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from the specified file, or discovers one in the
// search paths when filename is empty. Environment overrides are applied last
func (l *Loader) Load(filename string) (*Config, error) {
	filename, err := l.Resolve(filename)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return l.finish(l.defaults())
	}

	format, err := FormatFromPath(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return l.finish(config)
}

// Resolve returns filename, or the first config file in the search paths
// when filename is empty. It returns "" when no file is found
func (l *Loader) Resolve(filename string) (string, error) {
	if filename != "" {
		return filename, nil
	}
	found, err := l.findConfigFile()
	if errors.Is(err, ErrConfigFileNotFound) {
		return "", nil
	}
	return found, err
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.finish(config)
}

// finish applies environment overrides and validates
func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	config.applyModuleDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// defaults returns a private copy of the default configuration
func (l *Loader) defaults() *Config {
	base := l.defaultConfig
	if base == nil {
		base = DefaultConfig()
	}
	config := *base
	config.Modules = append([]ModuleConfig(nil), base.Modules...)
	return &config
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"stagehand.yaml", "stagehand.yml", "stagehand.toml", "stagehand.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

// parseConfig decodes data over the defaults, so absent keys keep their
// default values
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := l.defaults()

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, config)
	case FormatJSON:
		err = json.Unmarshal(data, config)
	case FormatTOML:
		_, err = toml.Decode(string(data), config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, format, err)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	env := func(key string) string {
		return os.Getenv(l.envPrefix + "_" + key)
	}

	// App configuration
	if val := env("APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := env("APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := env("APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := env("LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(strings.ToLower(val))
	}
	if val := env("LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := env("LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	// Engine configuration
	if val := env("ENGINE_FRAME_RATE"); val != "" {
		rate, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s_ENGINE_FRAME_RATE: %v", ErrEnvironmentVar, l.envPrefix, err)
		}
		config.Engine.FrameRate = rate
	}
	if val := env("ENGINE_TIME_SCALE"); val != "" {
		scale, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%w: %s_ENGINE_TIME_SCALE: %v", ErrEnvironmentVar, l.envPrefix, err)
		}
		config.Engine.TimeScale = scale
	}
	if val := env("ENGINE_COOLDOWN"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_ENGINE_COOLDOWN: %v", ErrEnvironmentVar, l.envPrefix, err)
		}
		config.Engine.Cooldown = d
	}

	// Input and window configuration
	if val := env("INPUT_KEYMAP"); val != "" {
		config.Input.Keymap = val
	}
	if val := env("WINDOW_STATE_FILE"); val != "" {
		config.Window.StateFile = val
	}

	// Monitor configuration
	if val := env("MONITOR_ENABLED"); val != "" {
		config.Monitor.Enabled = strings.ToLower(val) == "true"
	}
	if val := env("MONITOR_ADDRESS"); val != "" {
		config.Monitor.Address = val
	}

	return nil
}
