// Package config loads imgpdf configuration from defaults, an optional YAML file, a .env
// file and IMGPDF_* environment variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"imgpdf/internal/bgremoval"
	"imgpdf/internal/converter"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

// Config holds all configuration for imgpdf.
type Config struct {
	Server            ServerConfig            `yaml:"server"`
	Log               LogConfig               `yaml:"log"`
	Defaults          converter.RawSettings   `yaml:"defaults"`
	Extract           ExtractConfig           `yaml:"extract"`
	Compress          CompressConfig          `yaml:"compress"`
	Limits            converter.Limits        `yaml:"limits"`
	Workers           int                     `yaml:"workers"`
	BackgroundRemoval BackgroundRemovalConfig `yaml:"background_removal"`
}

// ServerConfig holds the local HTTP front end settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ExtractConfig holds PDF-to-image defaults.
type ExtractConfig struct {
	Format  string  `yaml:"format"`
	Quality float64 `yaml:"quality"`
	Scale   float64 `yaml:"scale"`
}

// CompressConfig holds PDF compression defaults.
type CompressConfig struct {
	Level string `yaml:"level"`
}

// BackgroundRemovalConfig configures the external segmentation command.
type BackgroundRemovalConfig struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Resolution string   `yaml:"resolution"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	margin := 10.0
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			RequestTimeout:  5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Defaults: converter.RawSettings{
			PageSize:       "a4",
			Orientation:    "portrait",
			FitMode:        "fit",
			MarginMm:       &margin,
			ConversionMode: "optimized",
			Preset:         string(preset.Balanced),
		},
		Extract: ExtractConfig{
			Format:  "png",
			Quality: 0.92,
			Scale:   2,
		},
		Compress: CompressConfig{
			Level: preset.DefaultPDFLevel,
		},
		Limits:  converter.DefaultLimits(),
		Workers: converter.DefaultWorkers(),
		BackgroundRemoval: BackgroundRemovalConfig{
			Resolution: bgremoval.DefaultProfile,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is ignored.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if !isLoopback(c.Server.Host) {
		return fmt.Errorf("server host %q is not a loopback address", c.Server.Host)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	if _, err := c.Defaults.Resolve(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if _, err := c.ExtractSettings(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if _, err := preset.LookupPDFLevel(c.Compress.Level); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if _, err := bgremoval.LookupProfile(c.BackgroundRemoval.Resolution); err != nil {
		return fmt.Errorf("background_removal: %w", err)
	}
	if c.Limits.MaxFileSize < 0 || c.Limits.MaxFiles < 0 || c.Limits.MaxTotalSize < 0 {
		return errors.New("limits must not be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// ExtractSettings resolves the PDF-to-image defaults.
func (c *Config) ExtractSettings() (converter.ExtractSettings, error) {
	s := converter.NewDefaultExtractSettings()
	if c.Extract.Format != "" {
		s.Format = raster.Format(strings.ToLower(c.Extract.Format))
	}
	if c.Extract.Quality != 0 {
		s.Quality = c.Extract.Quality
	}
	if c.Extract.Scale != 0 {
		s.Scale = c.Extract.Scale
	}
	if err := s.Validate(); err != nil {
		return converter.ExtractSettings{}, err
	}
	return s, nil
}

// isLoopback reports whether host only accepts local connections.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// applyEnvOverrides applies IMGPDF_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"IMGPDF_HOST":            &cfg.Server.Host,
		"IMGPDF_LOG_LEVEL":       &cfg.Log.Level,
		"IMGPDF_LOG_FORMAT":      &cfg.Log.Format,
		"IMGPDF_PAGE_SIZE":       &cfg.Defaults.PageSize,
		"IMGPDF_ORIENTATION":     &cfg.Defaults.Orientation,
		"IMGPDF_FIT_MODE":        &cfg.Defaults.FitMode,
		"IMGPDF_CONVERSION_MODE": &cfg.Defaults.ConversionMode,
		"IMGPDF_PRESET":          &cfg.Defaults.Preset,
		"IMGPDF_COMPRESS_LEVEL":  &cfg.Compress.Level,
		"IMGPDF_SEGMENT_COMMAND": &cfg.BackgroundRemoval.Command,
		"IMGPDF_BG_RESOLUTION":   &cfg.BackgroundRemoval.Resolution,
		"IMGPDF_EXTRACT_FORMAT":  &cfg.Extract.Format,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("IMGPDF_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMGPDF_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("IMGPDF_MARGIN_MM"); v != "" {
		margin, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("IMGPDF_MARGIN_MM: %w", err)
		}
		cfg.Defaults.MarginMm = &margin
	}
	if v := os.Getenv("IMGPDF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMGPDF_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("IMGPDF_MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("IMGPDF_MAX_FILE_SIZE: %w", err)
		}
		cfg.Limits.MaxFileSize = n
	}
	return nil
}
