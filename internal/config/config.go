package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/logger"
	"upload-compressor-go/internal/metadata"
	"upload-compressor-go/internal/raster"
	"upload-compressor-go/internal/upload"
)

// Config represents the main configuration structure
type Config struct {
	Compression CompressionConfig       `mapstructure:"compression"`
	Presets     map[string]PresetConfig `mapstructure:"presets"`
	Upload      UploadConfig            `mapstructure:"upload"`
	Performance PerformanceConfig       `mapstructure:"performance"`
	Server      ServerConfig            `mapstructure:"server"`
	Metadata    MetadataConfig          `mapstructure:"metadata"`
	Logging     LoggingConfig           `mapstructure:"logging"`
}

// CompressionConfig contains compressor settings shared by all presets
type CompressionConfig struct {
	PreferWebP    bool         `mapstructure:"prefer_webp"`
	MaxInputBytes int64        `mapstructure:"max_input_bytes"`
	MaxPixels     int          `mapstructure:"max_pixels"`
	Search        SearchConfig `mapstructure:"search"`
}

// SearchConfig tunes the quality/scale ladder
type SearchConfig struct {
	QualityStep   float64 `mapstructure:"quality_step"`
	QualityFloor  float64 `mapstructure:"quality_floor"`
	ScaleFactor   float64 `mapstructure:"scale_factor"`
	MaxScaleSteps int     `mapstructure:"max_scale_steps"`
}

// PresetConfig describes one upload call site
type PresetConfig struct {
	MaxSizeMB      float64 `mapstructure:"max_size_mb"`
	MaxLongEdge    int     `mapstructure:"max_long_edge"`
	InitialQuality float64 `mapstructure:"initial_quality"`
	MaxUploadMB    float64 `mapstructure:"max_upload_mb"`
}

// UploadConfig contains pre-flight validation settings
type UploadConfig struct {
	AllowedMIMETypes []string `mapstructure:"allowed_mime_types"`
}

// PerformanceConfig contains concurrency settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeoutSec  int `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int `mapstructure:"idle_timeout_sec"`
}

// MetadataConfig selects the metadata inspector backend
type MetadataConfig struct {
	Backend string `mapstructure:"backend"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	search := compressor.DefaultSearchParams()
	logDefaults := logger.DefaultConfig()
	presets := make(map[string]PresetConfig)
	for name, p := range compressor.DefaultPresets() {
		presets[name] = PresetConfig{
			MaxSizeMB:      p.MaxSizeMB,
			MaxLongEdge:    p.MaxLongEdgePixels,
			InitialQuality: p.InitialQuality,
			MaxUploadMB:    20,
		}
	}

	return &Config{
		Compression: CompressionConfig{
			PreferWebP:    true,
			MaxInputBytes: compressor.DefaultMaxInputBytes,
			MaxPixels:     raster.DefaultMaxPixels,
			Search: SearchConfig{
				QualityStep:   search.QualityStep,
				QualityFloor:  search.QualityFloor,
				ScaleFactor:   search.ScaleFactor,
				MaxScaleSteps: search.MaxScaleSteps,
			},
		},
		Presets: presets,
		Upload: UploadConfig{
			AllowedMIMETypes: upload.DefaultAllowedMIME(),
		},
		Performance: PerformanceConfig{
			WorkerThreads: 4,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 60,
			IdleTimeoutSec:  120,
		},
		Metadata: MetadataConfig{
			Backend: metadata.BackendGoexif,
		},
		Logging: LoggingConfig{
			Level:      logDefaults.Level,
			FilePath:   logDefaults.FilePath,
			MaxSize:    logDefaults.MaxSize,
			MaxBackups: logDefaults.MaxBackups,
			MaxAge:     logDefaults.MaxAge,
			Compress:   logDefaults.Compress,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()

	v.SetConfigType("yaml")
	setDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.upload-compressor")
		v.AddConfigPath("/etc/upload-compressor")
	}

	// Enable environment variable support
	v.SetEnvPrefix("UPLOAD_COMPRESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults registers every key with viper so that partial config files
// inherit the remaining fields and AutomaticEnv can resolve each key.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("compression.prefer_webp", c.Compression.PreferWebP)
	v.SetDefault("compression.max_input_bytes", c.Compression.MaxInputBytes)
	v.SetDefault("compression.max_pixels", c.Compression.MaxPixels)
	v.SetDefault("compression.search.quality_step", c.Compression.Search.QualityStep)
	v.SetDefault("compression.search.quality_floor", c.Compression.Search.QualityFloor)
	v.SetDefault("compression.search.scale_factor", c.Compression.Search.ScaleFactor)
	v.SetDefault("compression.search.max_scale_steps", c.Compression.Search.MaxScaleSteps)

	for name, p := range c.Presets {
		prefix := "presets." + name + "."
		v.SetDefault(prefix+"max_size_mb", p.MaxSizeMB)
		v.SetDefault(prefix+"max_long_edge", p.MaxLongEdge)
		v.SetDefault(prefix+"initial_quality", p.InitialQuality)
		v.SetDefault(prefix+"max_upload_mb", p.MaxUploadMB)
	}

	v.SetDefault("upload.allowed_mime_types", c.Upload.AllowedMIMETypes)
	v.SetDefault("performance.worker_threads", c.Performance.WorkerThreads)

	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.read_timeout_sec", c.Server.ReadTimeoutSec)
	v.SetDefault("server.write_timeout_sec", c.Server.WriteTimeoutSec)
	v.SetDefault("server.idle_timeout_sec", c.Server.IdleTimeoutSec)

	v.SetDefault("metadata.backend", c.Metadata.Backend)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates the configuration and fills zero values with defaults
func (c *Config) Validate() error {
	defaults := DefaultConfig()

	if c.Compression.MaxInputBytes <= 0 {
		c.Compression.MaxInputBytes = defaults.Compression.MaxInputBytes
	}
	if c.Compression.MaxPixels <= 0 {
		c.Compression.MaxPixels = defaults.Compression.MaxPixels
	}
	if err := c.SearchParams().Validate(); err != nil {
		return fmt.Errorf("invalid compression.search: %w", err)
	}

	if len(c.Presets) == 0 {
		c.Presets = defaults.Presets
	}
	normalized := make(map[string]PresetConfig, len(c.Presets))
	for name, p := range c.Presets {
		name = strings.ToLower(name)
		if p.MaxUploadMB <= 0 {
			p.MaxUploadMB = 20
		}
		if err := p.toPreset(name).Constraints().Validate(); err != nil {
			return fmt.Errorf("invalid preset %s: %w", name, err)
		}
		if int64(p.MaxUploadMB*1024*1024) > c.Compression.MaxInputBytes {
			return fmt.Errorf("preset %s: max_upload_mb exceeds compression.max_input_bytes", name)
		}
		normalized[name] = p
	}
	c.Presets = normalized

	if len(c.Upload.AllowedMIMETypes) == 0 {
		c.Upload.AllowedMIMETypes = defaults.Upload.AllowedMIMETypes
	}
	for i, mime := range c.Upload.AllowedMIMETypes {
		c.Upload.AllowedMIMETypes[i] = strings.ToLower(strings.TrimSpace(mime))
	}

	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = defaults.Performance.WorkerThreads
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = defaults.Server.ReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = defaults.Server.WriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = defaults.Server.IdleTimeoutSec
	}

	switch strings.ToLower(c.Metadata.Backend) {
	case "":
		c.Metadata.Backend = metadata.BackendGoexif
	case metadata.BackendGoexif, metadata.BackendExiftool:
		c.Metadata.Backend = strings.ToLower(c.Metadata.Backend)
	default:
		return fmt.Errorf("invalid metadata backend: %s (valid: goexif, exiftool)", c.Metadata.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// SearchParams converts the search section into compressor parameters
func (c *Config) SearchParams() compressor.SearchParams {
	return compressor.SearchParams{
		QualityStep:   c.Compression.Search.QualityStep,
		QualityFloor:  c.Compression.Search.QualityFloor,
		ScaleFactor:   c.Compression.Search.ScaleFactor,
		MaxScaleSteps: c.Compression.Search.MaxScaleSteps,
	}
}

// CompressorOptions builds compressor options from the configuration
func (c *Config) CompressorOptions() compressor.Options {
	return compressor.Options{
		PreferWebP:    c.Compression.PreferWebP,
		Search:        c.SearchParams(),
		MaxInputBytes: c.Compression.MaxInputBytes,
		MaxPixels:     c.Compression.MaxPixels,
	}
}

// CompressorPresets returns the configured presets keyed by name
func (c *Config) CompressorPresets() map[string]compressor.Preset {
	presets := make(map[string]compressor.Preset, len(c.Presets))
	for name, p := range c.Presets {
		presets[name] = p.toPreset(name)
	}
	return presets
}

// Preflight returns the upload validation for the named preset
func (c *Config) Preflight(preset string) (upload.Preflight, error) {
	p, ok := c.Presets[strings.ToLower(preset)]
	if !ok {
		return upload.Preflight{}, fmt.Errorf("unknown preset: %s", preset)
	}
	return upload.Preflight{
		AllowedMIME: c.Upload.AllowedMIMETypes,
		MaxBytes:    int64(p.MaxUploadMB * 1024 * 1024),
	}, nil
}

func (p PresetConfig) toPreset(name string) compressor.Preset {
	return compressor.Preset{
		Name:              name,
		MaxSizeMB:         p.MaxSizeMB,
		MaxLongEdgePixels: p.MaxLongEdge,
		InitialQuality:    p.InitialQuality,
	}
}
