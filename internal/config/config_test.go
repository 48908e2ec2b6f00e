package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Params.TimewindowWidthSeconds != DefaultTimewindowWidthSeconds {
		t.Errorf("got %d, want default %d", cfg.Params.TimewindowWidthSeconds, DefaultTimewindowWidthSeconds)
	}
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[params]
timewindow_width_seconds = 1800

[tool_a]
version = "0.9.1"

[tool_b]
version = "7.0.3"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Params.TimewindowWidthSeconds != 1800 {
		t.Errorf("got %d, want 1800", cfg.Params.TimewindowWidthSeconds)
	}
	if cfg.ToolA.Version != "0.9.1" || cfg.ToolB.Version != "7.0.3" {
		t.Errorf("got tool_a=%q tool_b=%q", cfg.ToolA.Version, cfg.ToolB.Version)
	}
}

func TestLoad_ZeroWidthFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[params]\ntimewindow_width_seconds = 0\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Params.TimewindowWidthSeconds != DefaultTimewindowWidthSeconds {
		t.Errorf("got %d, want default %d", cfg.Params.TimewindowWidthSeconds, DefaultTimewindowWidthSeconds)
	}
}
