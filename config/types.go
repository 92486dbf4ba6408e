// Package config provides configuration management for the stagehand engine
package config

import (
	"fmt"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Loader kinds for guest modules
const (
	LoaderPlugin   = "plugin"
	LoaderRegistry = "registry"
)

// Config represents the complete engine configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app" toml:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" toml:"log"`

	// Frame loop configuration
	Engine EngineConfig `yaml:"engine" json:"engine" toml:"engine"`

	// Guest modules, ticked in this order
	Modules []ModuleConfig `yaml:"modules" json:"modules" toml:"modules"`

	// Input configuration
	Input InputConfig `yaml:"input" json:"input" toml:"input"`

	// Window configuration
	Window WindowConfig `yaml:"window" json:"window" toml:"window"`

	// Monitoring configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor" toml:"monitor"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string      `yaml:"name" json:"name" toml:"name"`
	Version     string      `yaml:"version" json:"version" toml:"version"`
	Environment Environment `yaml:"environment" json:"environment" toml:"environment"`
	Debug       bool        `yaml:"debug" json:"debug" toml:"debug"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level" toml:"level"`

	// Log format (console, json)
	Format string `yaml:"format" json:"format" toml:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" toml:"output"`

	// Enable colored console output
	Color bool `yaml:"color" json:"color" toml:"color"`
}

// EngineConfig contains frame loop settings
type EngineConfig struct {
	// Target frames per second
	FrameRate int `yaml:"frame_rate" json:"frame_rate" toml:"frame_rate"`

	// Multiplier applied to the frame delta of guest trees
	TimeScale float64 `yaml:"time_scale" json:"time_scale" toml:"time_scale"`

	// Pause applied to a module after its update panics
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown" toml:"cooldown"`

	// Module whose backstage is the gameplay context
	GameplayModule string `yaml:"gameplay_module" json:"gameplay_module" toml:"gameplay_module"`
}

// FrameInterval returns the duration of one frame
func (e EngineConfig) FrameInterval() time.Duration {
	if e.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(e.FrameRate)
}

// ModuleConfig describes one reloadable guest module
type ModuleConfig struct {
	// Module name
	Name string `yaml:"name" json:"name" toml:"name"`

	// Source directory, watched and used as the build directory
	SourceRoot string `yaml:"source_root" json:"source_root" toml:"source_root"`

	// Extension of watched source files
	SourceExt string `yaml:"source_ext" json:"source_ext" toml:"source_ext"`

	// Build output path
	Artifact string `yaml:"artifact" json:"artifact" toml:"artifact"`

	// Build command; empty uses the default Go plugin build
	BuildCommand []string `yaml:"build_command,omitempty" json:"build_command,omitempty" toml:"build_command,omitempty"`

	// Directory for timestamped artifact copies; empty uses a temp dir
	CacheDir string `yaml:"cache_dir" json:"cache_dir" toml:"cache_dir"`

	// Loader kind (plugin, registry)
	Loader string `yaml:"loader" json:"loader" toml:"loader"`

	// Rebuild when sources change
	Watch bool `yaml:"watch" json:"watch" toml:"watch"`
}

// InputConfig contains input settings
type InputConfig struct {
	// Keymap file (YAML or TOML); empty keeps an empty context
	Keymap string `yaml:"keymap" json:"keymap" toml:"keymap"`
}

// WindowConfig contains window settings
type WindowConfig struct {
	Title  string `yaml:"title" json:"title" toml:"title"`
	Width  int    `yaml:"width" json:"width" toml:"width"`
	Height int    `yaml:"height" json:"height" toml:"height"`

	// File holding the last window position and size
	StateFile string `yaml:"state_file" json:"state_file" toml:"state_file"`

	// Saved state older than this is ignored
	Recency time.Duration `yaml:"recency" json:"recency" toml:"recency"`
}

// MonitorConfig contains monitoring configuration
type MonitorConfig struct {
	// Serve Prometheus metrics
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// Listen address
	Address string `yaml:"address" json:"address" toml:"address"`

	// Metrics path
	Path string `yaml:"path" json:"path" toml:"path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "stagehand",
			Version:     "0.1.0",
			Environment: EnvDevelopment,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "console",
			Output: "stderr",
			Color:  true,
		},
		Engine: EngineConfig{
			FrameRate: 60,
			TimeScale: 1,
			Cooldown:  5 * time.Second,
		},
		Window: WindowConfig{
			Title:   "stagehand",
			Width:   1280,
			Height:  720,
			Recency: 10 * time.Minute,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
			Path:    "/metrics",
		},
	}
}

// applyModuleDefaults fills per-module defaults
func (c *Config) applyModuleDefaults() {
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.SourceExt == "" {
			m.SourceExt = ".go"
		}
		if m.Loader == "" {
			m.Loader = LoaderPlugin
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return ErrInvalidLogFormat
	}

	// Validate engine config
	if c.Engine.FrameRate <= 0 || c.Engine.FrameRate > 1000 {
		return ErrInvalidFrameRate
	}
	if c.Engine.TimeScale < 0 {
		return ErrInvalidTimeScale
	}
	if c.Engine.Cooldown < 0 {
		return ErrInvalidCooldown
	}

	// Validate modules
	seen := make(map[string]bool, len(c.Modules))
	for _, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("%w: module name is required", ErrInvalidModule)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name)
		}
		seen[m.Name] = true

		switch m.Loader {
		case LoaderPlugin:
			if m.Artifact == "" {
				return fmt.Errorf("%w: %s needs an artifact path", ErrInvalidModule, m.Name)
			}
		case LoaderRegistry, "":
		default:
			return fmt.Errorf("%w: %s uses %q", ErrInvalidLoader, m.Name, m.Loader)
		}
		if m.Watch && m.SourceRoot == "" {
			return fmt.Errorf("%w: %s watches without a source root", ErrInvalidModule, m.Name)
		}
	}
	if g := c.Engine.GameplayModule; g != "" && !seen[g] {
		return fmt.Errorf("%w: %s", ErrUnknownGameplayModule, g)
	}

	// Validate window config
	if c.Window.Recency < 0 {
		return ErrInvalidRecency
	}

	return nil
}

// Module returns the named module configuration
func (c *Config) Module(name string) (ModuleConfig, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleConfig{}, false
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}
