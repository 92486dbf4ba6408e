// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName        = errors.New("invalid application name")
	ErrInvalidEnvironment    = errors.New("invalid environment")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidLogFormat      = errors.New("invalid log format")
	ErrInvalidFrameRate      = errors.New("invalid frame rate")
	ErrInvalidTimeScale      = errors.New("invalid time scale")
	ErrInvalidCooldown       = errors.New("invalid cooldown")
	ErrInvalidModule         = errors.New("invalid module")
	ErrDuplicateModule       = errors.New("duplicate module name")
	ErrInvalidLoader         = errors.New("invalid module loader")
	ErrUnknownGameplayModule = errors.New("gameplay module is not configured")
	ErrInvalidRecency        = errors.New("invalid window state recency")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound = errors.New("configuration file not found")
	ErrConfigParseError   = errors.New("configuration parse error")
	ErrUnsupportedFormat  = errors.New("unsupported configuration format")
	ErrEnvironmentVar     = errors.New("environment variable error")
)
