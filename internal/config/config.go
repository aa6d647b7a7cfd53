// Package config loads tephra.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name looked up by Find.
const FileName = "tephra.toml"

// Config mirrors tephra.toml. Zero values mean "not set"; Default fills them.
type Config struct {
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Cache    CacheConfig    `toml:"cache"`
	Output   OutputConfig   `toml:"output"`
	Trace    TraceConfig    `toml:"trace"`
	Stubs    StubsConfig    `toml:"stubs"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

type AnalyzerConfig struct {
	Diff                   bool `toml:"diff"`
	Jobs                   int  `toml:"jobs"`
	StepBudget             int  `toml:"step-budget"`
	AllowPossiblyUndefined bool `toml:"allow-possibly-undefined"`
	MaxDiagnostics         int  `toml:"max-diagnostics"`
}

type CacheConfig struct {
	Dir string `toml:"dir"`
}

type OutputConfig struct {
	Format string `toml:"format"` // pretty|json|sarif|short
	Color  string `toml:"color"`  // auto|on|off
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// StubsConfig lists the stub paths analyzed when none are given on the
// command line. Relative paths are resolved against the config's directory.
type StubsConfig struct {
	Paths []string `toml:"paths"`
}

// Default returns the configuration used without a tephra.toml.
func Default() Config {
	return Config{
		Output: OutputConfig{Format: "pretty", Color: "auto"},
		Trace:  TraceConfig{Level: "off"},
	}
}

// Find walks up from startDir looking for tephra.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, p := range cfg.Stubs.Paths {
		if !filepath.IsAbs(p) {
			cfg.Stubs.Paths[i] = filepath.Join(base, filepath.FromSlash(p))
		}
	}
	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(base, filepath.FromSlash(cfg.Cache.Dir))
	}
	return cfg, nil
}

// Discover loads the nearest tephra.toml above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case "pretty", "json", "sarif", "short":
	default:
		return fmt.Errorf("[output].format must be pretty, json, sarif or short, got %q", c.Output.Format)
	}
	switch c.Output.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("[output].color must be auto, on or off, got %q", c.Output.Color)
	}
	if c.Analyzer.Jobs < 0 {
		return fmt.Errorf("[analyzer].jobs must not be negative")
	}
	if c.Analyzer.StepBudget < 0 {
		return fmt.Errorf("[analyzer].step-budget must not be negative")
	}
	return nil
}
