// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "MUTATOR_CONFIG"

// Config is the configuration for the mutation engine and its
// collaborators.
type Config struct {
	// DataDir is the base directory for documents and the journal.
	// Available to other path fields as ${MUTATOR_DATA_DIR}.
	DataDir string `yaml:"data_dir"`

	Engine   EngineConfig   `yaml:"engine"`
	Document DocumentConfig `yaml:"document"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig tunes every Mutator the process creates.
type EngineConfig struct {
	// DebounceTimeout is the quiet period before a debounced
	// continuous mutation is applied. Default: 500ms.
	DebounceTimeout time.Duration `yaml:"debounce_timeout"`

	// MaxStackDepth bounds each undo stack. 0 means unbounded.
	MaxStackDepth int `yaml:"max_stack_depth"`
}

// DocumentConfig configures the on-disk document store.
type DocumentConfig struct {
	// Dir is where relative document paths are resolved.
	// Default: ${MUTATOR_DATA_DIR}/documents
	Dir string `yaml:"dir"`

	// Compression is one of "none", "zstd", "lz4". Applies to newly
	// written files; existing files are read in whatever format they
	// were written in.
	Compression string `yaml:"compression"`
}

// JournalConfig configures the mutation history database.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite file. Default: ${MUTATOR_DATA_DIR}/journal.db
	Path string `yaml:"path"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used as the base before a file is
// applied on top of it.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "mutator")

	return &Config{
		DataDir: dataDir,
		Engine: EngineConfig{
			DebounceTimeout: 500 * time.Millisecond,
		},
		Document: DocumentConfig{
			Dir:         "${MUTATOR_DATA_DIR}/documents",
			Compression: "none",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "${MUTATOR_DATA_DIR}/journal.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads the file named by $MUTATOR_CONFIG. There is no search
// path: if the variable is unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your mutator.yaml, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads path on top of Default and expands variables in the
// path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.ExpandVariables()
	return cfg, nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} in path fields.
// MUTATOR_DATA_DIR and HOME are always defined; other names come from
// the environment.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.DataDir = expandVars(c.DataDir, vars)
	vars["MUTATOR_DATA_DIR"] = c.DataDir

	c.Document.Dir = expandVars(c.Document.Dir, vars)
	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	compressions = []string{"none", "zstd", "lz4"}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"text", "json"}
)

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.DebounceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.debounce_timeout must be positive, got %s", c.Engine.DebounceTimeout))
	}
	if c.Engine.MaxStackDepth < 0 {
		errs = append(errs, fmt.Errorf("engine.max_stack_depth must not be negative, got %d", c.Engine.MaxStackDepth))
	}
	if !slices.Contains(compressions, c.Document.Compression) {
		errs = append(errs, fmt.Errorf("document.compression must be one of %v, got %q", compressions, c.Document.Compression))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v, got %q", logLevels, c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of %v, got %q", logFormats, c.Log.Format))
	}

	return errors.Join(errs...)
}

// ResolveDocument returns path unchanged if absolute, otherwise joined
// onto Document.Dir.
func (c *Config) ResolveDocument(path string) string {
	if filepath.IsAbs(path) || c.Document.Dir == "" {
		return path
	}
	return filepath.Join(c.Document.Dir, path)
}

// NewLogger builds the process logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", l.Format)
	}
}
