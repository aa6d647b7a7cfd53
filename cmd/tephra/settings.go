package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tephra/internal/config"
	"tephra/internal/diagfmt"
	"tephra/internal/incremental"
)

// loadConfig reads --config, or the nearest tephra.toml above the working
// directory. Config errors abort the command.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return config.Discover(wd)
}

// useColor resolves --color over [output].color against the terminal.
func useColor(cmd *cobra.Command, cfg config.Config) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	if mode == "" {
		mode = cfg.Output.Color
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "", "auto":
		return isTerminal(os.Stdout), nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}

// cacheDir resolves the state directory: --cache-dir, [cache].dir, then the
// user cache directory.
func cacheDir(flag string, cfg config.Config) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return incremental.DefaultCacheDir("tephra")
}

func parseFormat(format string) error {
	switch format {
	case "pretty", "json", "sarif", "short":
		return nil
	}
	return fmt.Errorf("unknown format: %s (expected pretty|json|sarif|short)", format)
}

func pathMode(fullPath bool) diagfmt.PathMode {
	if fullPath {
		return diagfmt.PathModeAbsolute
	}
	return diagfmt.PathModeAuto
}
