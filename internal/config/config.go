package config

import (
	"fmt"
	"runtime"

	"github.com/ossyrian/runzip/internal/codepage"
)

// Config holds app configuration
type Config struct {
	// Source forces the legacy encoding of names without the UTF-8 flag
	// If empty, the encoding is detected per entry
	Source string `mapstructure:"source"`

	// Target is the encoding names are converted to (utf-8 by default)
	Target string `mapstructure:"target"`

	// LegacyWindows converts to cp866 for old Windows archivers
	// Overrides Target
	LegacyWindows bool `mapstructure:"legacy_windows"`

	DryRun         bool  `mapstructure:"dry_run"`
	Workers        int   `mapstructure:"workers"`
	MaxArchiveSize int64 `mapstructure:"max_archive_size"`

	Verbose      int    `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
	Progress     bool   `mapstructure:"progress"`
	NoColor      bool   `mapstructure:"no_color"`
}

// Options is the resolved configuration handed to the recoder
type Options struct {
	Source         *codepage.Encoding // nil means detect
	Target         codepage.Encoding
	DryRun         bool
	LegacyWindows  bool
	Verbosity      int
	MaxArchiveSize int64
	Workers        int
}

// Resolve validates the configuration and turns encoding names into encodings
// Legacy Windows mode replaces the target before anything else sees it
func (c *Config) Resolve() (Options, error) {
	opts := Options{
		DryRun:         c.DryRun,
		LegacyWindows:  c.LegacyWindows,
		Verbosity:      c.Verbose,
		MaxArchiveSize: c.MaxArchiveSize,
		Workers:        c.Workers,
	}

	if c.Source != "" {
		src, err := codepage.Parse(c.Source)
		if err != nil {
			return Options{}, fmt.Errorf("invalid source encoding: %w", err)
		}
		if !src.IsLegacy() {
			return Options{}, fmt.Errorf("invalid source encoding: %s is not a legacy code page", src)
		}
		opts.Source = &src
	}

	switch {
	case c.LegacyWindows:
		opts.Target = codepage.CP866
	case c.Target == "":
		opts.Target = codepage.UTF8
	default:
		target, err := codepage.Parse(c.Target)
		if err != nil {
			return Options{}, fmt.Errorf("invalid target encoding: %w", err)
		}
		opts.Target = target
	}

	if opts.Source != nil && *opts.Source == opts.Target {
		return Options{}, fmt.Errorf("source and target are both %s", opts.Target)
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxArchiveSize < 0 {
		return Options{}, fmt.Errorf("invalid max archive size: %d", opts.MaxArchiveSize)
	}

	return opts, nil
}

// EffectiveLogLevel returns the log level after applying -v flags
func (c *Config) EffectiveLogLevel() string {
	if c.Verbose > 0 {
		return "debug"
	}
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}
