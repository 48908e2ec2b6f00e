// Package config loads the run's key/value configuration file: the
// time-window width and the tool version strings recorded in run
// metadata.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the parsed configuration file contents.
type Config struct {
	Params Params `toml:"params"`
	ToolA  Tool   `toml:"tool_a"`
	ToolB  Tool   `toml:"tool_b"`
}

// Params holds the run-wide parameters.
type Params struct {
	TimewindowWidthSeconds int `toml:"timewindow_width_seconds"`
}

// Tool holds a tool's version string. The version is recorded in the
// run's metadata.txt only; label-store column names do not depend on it.
type Tool struct {
	Version string `toml:"version"`
}

// DefaultTimewindowWidthSeconds applies when the file or key is absent.
const DefaultTimewindowWidthSeconds = 3600

// Load reads and parses the TOML configuration file at path. A missing
// file is not an error: Load returns the defaulted Config.
func Load(path string) (Config, error) {
	cfg := Config{Params: Params{TimewindowWidthSeconds: DefaultTimewindowWidthSeconds}}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if cfg.Params.TimewindowWidthSeconds <= 0 {
		cfg.Params.TimewindowWidthSeconds = DefaultTimewindowWidthSeconds
	}
	return cfg, nil
}
