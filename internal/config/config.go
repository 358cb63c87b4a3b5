package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/asynkron/diffapply/pkg/patch"
)

// Blank line handling modes for engine.blank_lines.
const (
	BlankLinesEndHunk = "end-hunk"
	BlankLinesContext = "context"
)

// Environment variables that override file settings.
const (
	EnvBlankLines  = "DIFFAPPLY_BLANK_LINES"
	EnvSeekHeaders = "DIFFAPPLY_SEEK_HEADERS"
	EnvLogFile     = "DIFFAPPLY_LOG_FILE"
	EnvLogLevel    = "DIFFAPPLY_LOG_LEVEL"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
	Output    OutputConfig    `yaml:"output"`
}

// EngineConfig controls how patches are parsed and matched
type EngineConfig struct {
	BlankLines      string `yaml:"blank_lines"`       // "end-hunk" (default) or "context"
	SeekHunkHeaders bool   `yaml:"seek_hunk_headers"` // seek to the @@ old-start line before each hunk
}

// WorkspaceConfig controls where relative paths resolve and how long to wait for file locks
type WorkspaceConfig struct {
	Root        string        `yaml:"root"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// LoggingConfig configures the zap file logger
type LoggingConfig struct {
	File        string `yaml:"file"` // empty disables logging
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// OutputConfig configures CLI rendering
type OutputConfig struct {
	Markdown bool `yaml:"markdown"`
	Color    bool `yaml:"color"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Output.Color = true
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path and applies environment overrides from
// the process environment. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}

	if cfg.Workspace.Root != "" {
		absRoot, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
		}
		cfg.Workspace.Root = absRoot
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBlankLines); ok && v != "" {
		c.Engine.BlankLines = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvSeekHeaders); ok && v != "" {
		seek, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSeekHeaders, err)
		}
		c.Engine.SeekHunkHeaders = seek
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Logging.File = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Engine.BlankLines == "" {
		c.Engine.BlankLines = BlankLinesEndHunk
	}
	if c.Workspace.LockTimeout <= 0 {
		c.Workspace.LockTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	switch c.Engine.BlankLines {
	case BlankLinesEndHunk, BlankLinesContext:
	default:
		return fmt.Errorf("engine.blank_lines must be %q or %q, got %q", BlankLinesEndHunk, BlankLinesContext, c.Engine.BlankLines)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// PatchOptions maps the engine section onto patch.Options.
func (c *Config) PatchOptions() patch.Options {
	return patch.Options{
		BlankLineAsContext: c.Engine.BlankLines == BlankLinesContext,
		SeekHunkHeaders:    c.Engine.SeekHunkHeaders,
	}
}
