package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	presets := cfg.CompressorPresets()
	if presets["avatar"].Constraints().TargetSizeBytes != 524288 {
		t.Fatalf("avatar preset = %+v", presets["avatar"])
	}
	if presets["gallery"].MaxLongEdgePixels != 2560 {
		t.Fatalf("gallery preset = %+v", presets["gallery"])
	}
	if cfg.Logging.FilePath != "upload-compressor.log" || cfg.Logging.Level != "info" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	pf, err := cfg.Preflight("Avatar")
	if err != nil || pf.MaxBytes != 20*1024*1024 {
		t.Fatalf("Preflight = %+v, %v", pf, err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
compression:
  prefer_webp: false
  search:
    quality_step: 0.05
    quality_floor: 0.5
    scale_factor: 0.9
    max_scale_steps: 2
presets:
  Banner:
    max_size_mb: 1
    max_long_edge: 1920
    initial_quality: 0.85
metadata:
  backend: exiftool
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Compression.PreferWebP {
		t.Error("prefer_webp not overridden")
	}
	if p := cfg.SearchParams(); p.QualityStep != 0.05 || p.MaxScaleSteps != 2 {
		t.Errorf("search params = %+v", p)
	}
	banner, ok := cfg.Presets["banner"]
	if !ok || banner.MaxLongEdge != 1920 || banner.MaxUploadMB != 20 {
		t.Errorf("banner preset = %+v (present %v)", banner, ok)
	}
	if cfg.Metadata.Backend != "exiftool" {
		t.Errorf("backend = %s", cfg.Metadata.Backend)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad backend", func(c *Config) { c.Metadata.Backend = "magick" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unbounded ladder", func(c *Config) { c.Compression.Search.QualityStep = 0 }},
		{"bad preset quality", func(c *Config) {
			p := c.Presets["avatar"]
			p.InitialQuality = 1.2
			c.Presets["avatar"] = p
		}},
		{"upload ceiling above hard ceiling", func(c *Config) {
			p := c.Presets["gallery"]
			p.MaxUploadMB = 1000
			c.Presets["gallery"] = p
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadConfigPartialPresetInheritsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
presets:
  avatar:
    max_size_mb: 1
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	avatar := cfg.Presets["avatar"]
	if avatar.MaxSizeMB != 1 {
		t.Errorf("max_size_mb = %v, want 1", avatar.MaxSizeMB)
	}
	if avatar.MaxLongEdge != 800 || avatar.InitialQuality != 0.9 || avatar.MaxUploadMB != 20 {
		t.Errorf("avatar did not inherit defaults: %+v", avatar)
	}
	if cfg.Presets["gallery"].MaxLongEdge != 2560 {
		t.Errorf("gallery preset = %+v", cfg.Presets["gallery"])
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("UPLOAD_COMPRESSOR_SERVER_PORT", "9999")
	t.Setenv("UPLOAD_COMPRESSOR_COMPRESSION_PREFER_WEBP", "false")
	t.Setenv("UPLOAD_COMPRESSOR_PRESETS_GALLERY_MAX_LONG_EDGE", "1920")
	t.Setenv("UPLOAD_COMPRESSOR_LOGGING_LEVEL", "warn")

	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Compression.PreferWebP {
		t.Error("prefer_webp not overridden by environment")
	}
	if cfg.Presets["gallery"].MaxLongEdge != 1920 {
		t.Errorf("gallery max_long_edge = %d, want 1920", cfg.Presets["gallery"].MaxLongEdge)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %s, want warn", cfg.Logging.Level)
	}
}
