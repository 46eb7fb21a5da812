package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"jrr/common"
	"jrr/misc"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	CoverConfig struct {
		Resize      common.ImageResizeMode `yaml:"resize" validate:"gte=0"`
		Width       int                    `yaml:"width" validate:"min=0"`
		Height      int                    `yaml:"height" validate:"min=0"`
		JPEGQuality int                    `yaml:"jpeq_quality_level" validate:"min=40,max=100"`
	}

	DocumentConfig struct {
		FixZip                bool        `yaml:"fix_zip"`
		StylesheetPath        string      `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		Fonts                 []string    `yaml:"fonts" validate:"dive,file"`
		OutputNameTemplate    string      `yaml:"output_name_template"`
		FileNameTransliterate bool        `yaml:"file_name_transliterate"`
		DefaultLanguage       string      `yaml:"default_language" validate:"required"`
		Copyrights            bool        `yaml:"copyrights"`
		Cover                 CoverConfig `yaml:"cover"`
	}

	AudioConfig struct {
		PlaylistCover bool `yaml:"playlist_cover"`
		Album         bool `yaml:"album"`
	}

	LibraryConfig struct {
		WorkDir          string        `yaml:"work_dir" sanitize:"path_clean"`
		OutputDir        string        `yaml:"output_dir" sanitize:"path_clean" validate:"required"`
		SettingsDB       string        `yaml:"settings_db" sanitize:"path_clean"`
		KeepIntermediate bool          `yaml:"keep_intermediate"`
		CacheTTL         time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	}

	SessionConfig struct {
		AccessToken SecretString `yaml:"access_token"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Library   LibraryConfig  `yaml:"library"`
		Document  DocumentConfig `yaml:"document"`
		Audio     AudioConfig    `yaml:"audio"`
		Session   SessionConfig  `yaml:"session"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// decodeInto overlays data on top of cfg. Unknown fields are errors, so typos
// in configuration file do not go unnoticed.
func decodeInto(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return nil
}

func check(cfg *Config) error {
	if err := gencfg.Sanitize(cfg); err != nil {
		return fmt.Errorf("configuration sanitizing failed: %w", err)
	}
	if err := gencfg.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// LoadConfiguration expands embedded template to get defaults and overlays
// configuration file from path on top of them, empty path means defaults
// only. Result is sanitized and validated once, after overlay.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg := &Config{}
	if err := decodeInto(cfg, data); err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}

	if path != "" {
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeInto(cfg, data); err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
	}

	if err := check(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}

// ResolveWorkDir returns directory for downloaded archives and intermediate files,
// application directory under system temporary location when not configured.
func (conf *LibraryConfig) ResolveWorkDir() string {
	if conf.WorkDir != "" {
		return conf.WorkDir
	}
	return filepath.Join(os.TempDir(), misc.GetAppName())
}

// ResolveSettingsDB returns location of settings database, under user
// configuration directory when not configured.
func (conf *LibraryConfig) ResolveSettingsDB() (string, error) {
	if conf.SettingsDB != "" {
		return conf.SettingsDB, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to locate user configuration directory: %w", err)
	}
	return filepath.Join(dir, misc.GetAppName(), "settings.db"), nil
}
