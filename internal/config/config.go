// Package config handles scenetool configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/acoustic-scene/internal/logger"
	"github.com/Faultbox/acoustic-scene/internal/session"
	"github.com/Faultbox/acoustic-scene/internal/solver"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all settings.
type Config struct {
	Acoustics solver.Config        `yaml:"acoustics" toml:"acoustics"`
	Listener  solver.ChannelLayout `yaml:"listener" toml:"listener"`
	Output    OutputConfig         `yaml:"output" toml:"output"`
	Logging   LoggingConfig        `yaml:"logging" toml:"logging"`
}

// OutputConfig holds simulation output settings.
type OutputConfig struct {
	// Directory is a prefix, not a parent folder: run n writes to
	// Directory+"n".
	Directory string `yaml:"directory" toml:"directory"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	LogFile    string `yaml:"log_file" toml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Acoustics: solver.DefaultConfig(),
		Listener:  solver.DefaultChannelLayout(),
		Output: OutputConfig{
			Directory: "output/sim",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Acoustics.Validate(); err != nil {
		return fmt.Errorf("%w: acoustics: %w", ErrInvalidConfig, err)
	}
	if err := c.Listener.Validate(); err != nil {
		return fmt.Errorf("%w: listener: %w", ErrInvalidConfig, err)
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("%w: output directory is empty", ErrInvalidConfig)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SessionOptions returns the session settings described by the config.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Solver:          c.Acoustics,
		Layout:          c.Listener,
		OutputDirectory: c.Output.Directory,
	}
}

// LogFileConfig returns the rotation settings for the log file, or the zero
// FileConfig when file logging is off.
func (c *Config) LogFileConfig() logger.FileConfig {
	if c.Logging.LogFile == "" {
		return logger.FileConfig{}
	}
	fc := logger.DefaultFileConfig(c.Logging.LogFile)
	if c.Logging.MaxSizeMB > 0 {
		fc.MaxSizeMB = c.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups > 0 {
		fc.MaxBackups = c.Logging.MaxBackups
	}
	return fc
}
