package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"

	"jrr/common"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Document.DefaultLanguage != "ar" {
		t.Errorf("DefaultLanguage = %q, want ar", cfg.Document.DefaultLanguage)
	}
	if !cfg.Document.FixZip {
		t.Error("FixZip should be enabled by default")
	}
	if !cfg.Document.Copyrights {
		t.Error("Copyrights chapter should be enabled by default")
	}
	if cfg.Document.Cover.Resize != common.ImageResizeModeNone {
		t.Errorf("Cover.Resize = %v, want none", cfg.Document.Cover.Resize)
	}
	if cfg.Library.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want 24h", cfg.Library.CacheTTL)
	}
	if cfg.Library.KeepIntermediate {
		t.Error("KeepIntermediate should be disabled by default")
	}
	if !cfg.Audio.PlaylistCover || !cfg.Audio.Album {
		t.Error("playlist tags should be enabled by default")
	}
	if cfg.Session.AccessToken != "" {
		t.Error("access token must not have default")
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("console level = %q, want normal", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
library:
  work_dir: ` + filepath.Join(tmpDir, "work") + `
  output_dir: ` + filepath.Join(tmpDir, "books") + `
  keep_intermediate: true
  cache_ttl: 90m
document:
  fix_zip: false
  default_language: en
  output_name_template: "{{ .Title }}"
  cover:
    resize: keepAR
    width: 600
    height: 800
    jpeq_quality_level: 85
audio:
  album: false
session:
  access_token: abc123
logging:
  console:
    level: debug
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
reporting:
  destination: ` + filepath.Join(tmpDir, "report.zip") + `
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Document.FixZip {
		t.Error("Expected FixZip to be false")
	}
	if cfg.Document.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q, want en", cfg.Document.DefaultLanguage)
	}
	if cfg.Document.OutputNameTemplate != "{{ .Title }}" {
		t.Errorf("OutputNameTemplate = %q, template must not be expanded", cfg.Document.OutputNameTemplate)
	}
	if cfg.Document.Cover.Resize != common.ImageResizeModeKeepAR {
		t.Errorf("Cover.Resize = %v, want keepAR", cfg.Document.Cover.Resize)
	}
	if cfg.Document.Cover.JPEGQuality != 85 {
		t.Errorf("JPEGQuality = %d, want 85", cfg.Document.Cover.JPEGQuality)
	}
	if cfg.Library.CacheTTL != 90*time.Minute {
		t.Errorf("CacheTTL = %v, want 90m", cfg.Library.CacheTTL)
	}
	if !cfg.Library.KeepIntermediate {
		t.Error("Expected KeepIntermediate to be true")
	}
	if cfg.Audio.Album || !cfg.Audio.PlaylistCover {
		t.Error("audio section was not merged with defaults")
	}
	if cfg.Session.AccessToken != "abc123" {
		t.Errorf("AccessToken = %q", cfg.Session.AccessToken)
	}
	if got := cfg.Library.ResolveWorkDir(); got != filepath.Join(tmpDir, "work") {
		t.Errorf("ResolveWorkDir() = %s", got)
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_BadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\ndocument:\n  fix_zip: true\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"invalid version", "version: 2\n"},
		{"unknown resize mode", "version: 1\ndocument:\n  cover:\n    resize: squeeze\n"},
		{"quality out of range", "version: 1\ndocument:\n  cover:\n    jpeq_quality_level: 10\n"},
		{"empty language", "version: 1\ndocument:\n  default_language: \"\"\n"},
		{"missing font", "version: 1\ndocument:\n  fonts: [/nonexistent/font.ttf]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Prepare() returned empty data")
	}
	cfg := &Config{}
	if err := decodeInto(cfg, data); err != nil {
		t.Fatalf("Prepared config cannot be decoded: %v", err)
	}
	if err := check(cfg); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Document.Cover.Resize = common.ImageResizeModeStretch
	cfg.Library.CacheTTL = 2 * time.Hour

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	cfg2 := &Config{}
	if err := decodeInto(cfg2, data); err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v\n%s", err, data)
	}
	if cfg2.Version != cfg.Version {
		t.Errorf("Version mismatch after dump/load: got %d, want %d", cfg2.Version, cfg.Version)
	}
	if cfg2.Document.Cover.Resize != common.ImageResizeModeStretch {
		t.Errorf("Resize after dump/load = %v", cfg2.Document.Cover.Resize)
	}
	if cfg2.Library.CacheTTL != 2*time.Hour {
		t.Errorf("CacheTTL after dump/load = %v", cfg2.Library.CacheTTL)
	}
}

func TestResolveSettingsDB(t *testing.T) {
	conf := LibraryConfig{SettingsDB: "/data/settings.db"}
	if got, err := conf.ResolveSettingsDB(); err != nil || got != "/data/settings.db" {
		t.Errorf("ResolveSettingsDB() = %s, %v", got, err)
	}

	conf.SettingsDB = ""
	got, err := conf.ResolveSettingsDB()
	if err != nil {
		t.Skipf("no user configuration directory: %v", err)
	}
	if filepath.Base(got) != "settings.db" {
		t.Errorf("ResolveSettingsDB() = %s", got)
	}
}

func TestCheck_WrapsValidationError(t *testing.T) {
	cfg := &Config{}
	if err := decodeInto(cfg, []byte("version: 99\n")); err != nil {
		t.Fatal(err)
	}
	err := check(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validat") {
		t.Errorf("expected error to mention validation, got: %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped error, got bare error: %v", err)
	}
}
