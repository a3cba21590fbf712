// =============================================================================
// Donation Importer - Configuration Module
// =============================================================================
//
// This module loads the importer configuration from a YAML file, applies
// defaults for everything left unset, folds in environment overrides and
// validates the result.
//
// CONFIGURATION FILE (config.yaml):
//   input_dir:          Directory scanned by 'importer validate'
//   archive_dir:        Where successfully submitted files are moved
//   archive_on_success: Move the input file after a successful submission
//   max_concurrency:    Files validated in parallel
//   log_level:          debug | info | warn | error
//   schema:             Which fields exist and which are required
//   decode:             File decoding limits and CSV settings
//   transform:          Row transformer behaviour
//   collector:          Remote donations endpoint
//   server:             HTTP session API
//
// ENVIRONMENT OVERRIDES:
//   IMPORTER_ENDPOINT, IMPORTER_CSRF_TOKEN, IMPORTER_SESSION_COOKIE,
//   IMPORTER_LOG_LEVEL
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config is the complete importer configuration.
type Config struct {
	// InputDir is scanned for spreadsheets when 'validate' gets no arguments.
	InputDir string `yaml:"input_dir"`

	// ArchiveDir receives input files after a successful submission.
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveOnSuccess enables moving submitted files into ArchiveDir.
	ArchiveOnSuccess *bool `yaml:"archive_on_success"`

	// MaxConcurrency bounds how many files 'validate' checks at once.
	MaxConcurrency int `yaml:"max_concurrency"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Schema    SchemaSettings    `yaml:"schema"`
	Decode    DecodeSettings    `yaml:"decode"`
	Transform TransformSettings `yaml:"transform"`
	Collector CollectorSettings `yaml:"collector"`
	Server    ServerSettings    `yaml:"server"`
}

// SchemaSettings selects the record schema.
type SchemaSettings struct {
	// Name is "donor" (donor_name required) or "shelter" (no donor_name).
	Name string `yaml:"name"`

	// Required overrides the schema's optional fields when not empty. amount
	// and occurred_at are always required.
	Required []string `yaml:"required"`

	// Aliases adds extra header names per field for automatic mapping.
	Aliases map[string][]string `yaml:"aliases"`
}

// DecodeSettings controls spreadsheet decoding.
type DecodeSettings struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxFileSize int64         `yaml:"max_file_size"`

	// CSVDelimiter is a single character, a name (comma, semicolon, tab,
	// pipe) or "auto".
	CSVDelimiter string `yaml:"csv_delimiter"`

	// CSVEncoding is any WHATWG encoding label, e.g. utf-8 or windows-1252.
	CSVEncoding string `yaml:"csv_encoding"`
}

// TransformSettings controls the row transformer.
type TransformSettings struct {
	// Mode is "strict" (first bad row aborts the batch) or "skip" (bad rows
	// are dropped and reported).
	Mode string `yaml:"mode"`

	// PreferMonthFirst resolves ambiguous dates like 03/04/2024 as March 4.
	PreferMonthFirst *bool `yaml:"prefer_month_first"`
}

// CollectorSettings describes the remote donations endpoint.
type CollectorSettings struct {
	Endpoint   string            `yaml:"endpoint"`
	PayloadKey string            `yaml:"payload_key"`
	CSRFToken  string            `yaml:"csrf_token"`
	Cookies    map[string]string `yaml:"cookies"`
	Timeout    time.Duration     `yaml:"timeout"`
}

// ServerSettings configures the HTTP session API.
type ServerSettings struct {
	Addr       string        `yaml:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Transform modes.
const (
	ModeStrict = "strict"
	ModeSkip   = "skip"
)

// SessionCookieName is the cookie set from IMPORTER_SESSION_COOKIE.
const SessionCookieName = "laravel_session"

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration file at path.
//
// A missing file is only an error when required is true; otherwise the
// defaults are used. Environment overrides are applied after the file.
func Load(path string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for any missing configuration.
func applyDefaults(cfg *Config) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "./input_archive"
	}
	if cfg.ArchiveOnSuccess == nil {
		cfg.ArchiveOnSuccess = boolPtr(true)
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Schema.Name == "" {
		cfg.Schema.Name = "donor"
	}

	if cfg.Decode.Timeout == 0 {
		cfg.Decode.Timeout = 30 * time.Second
	}
	if cfg.Decode.MaxFileSize == 0 {
		cfg.Decode.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Decode.CSVDelimiter == "" {
		cfg.Decode.CSVDelimiter = "auto"
	}
	if cfg.Decode.CSVEncoding == "" {
		cfg.Decode.CSVEncoding = "utf-8"
	}

	if cfg.Transform.Mode == "" {
		cfg.Transform.Mode = ModeStrict
	}
	if cfg.Transform.PreferMonthFirst == nil {
		cfg.Transform.PreferMonthFirst = boolPtr(true)
	}

	if cfg.Collector.Endpoint == "" {
		cfg.Collector.Endpoint = "http://localhost:8000/donaciones/import"
	}
	if cfg.Collector.PayloadKey == "" {
		cfg.Collector.PayloadKey = "donations"
	}
	if cfg.Collector.Timeout == 0 {
		cfg.Collector.Timeout = 30 * time.Second
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
}

// applyEnv folds environment overrides into cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("IMPORTER_ENDPOINT"); v != "" {
		cfg.Collector.Endpoint = v
	}
	if v := os.Getenv("IMPORTER_CSRF_TOKEN"); v != "" {
		cfg.Collector.CSRFToken = v
	}
	if v := os.Getenv("IMPORTER_SESSION_COOKIE"); v != "" {
		if cfg.Collector.Cookies == nil {
			cfg.Collector.Cookies = make(map[string]string)
		}
		cfg.Collector.Cookies[SessionCookieName] = v
	}
	if v := os.Getenv("IMPORTER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks that cfg can drive an import.
func Validate(cfg *Config) error {
	switch cfg.Schema.Name {
	case "donor", "shelter":
	default:
		return fmt.Errorf("unknown schema %q (expected donor or shelter)", cfg.Schema.Name)
	}

	switch cfg.Transform.Mode {
	case ModeStrict, ModeSkip:
	default:
		return fmt.Errorf("unknown transform mode %q (expected strict or skip)", cfg.Transform.Mode)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	if cfg.Decode.Timeout < 0 || cfg.Collector.Timeout < 0 || cfg.Server.SessionTTL < 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if cfg.Decode.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if cfg.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1")
	}
	if strings.TrimSpace(cfg.Collector.Endpoint) == "" {
		return fmt.Errorf("collector endpoint is required")
	}
	if strings.TrimSpace(cfg.Collector.PayloadKey) == "" {
		return fmt.Errorf("collector payload_key is required")
	}

	return nil
}

// ShouldArchive reports whether submitted files are moved to ArchiveDir.
func (c *Config) ShouldArchive() bool {
	return c.ArchiveOnSuccess != nil && *c.ArchiveOnSuccess
}

// MonthFirst reports the ambiguous-date preference.
func (c *Config) MonthFirst() bool {
	return c.Transform.PreferMonthFirst == nil || *c.Transform.PreferMonthFirst
}

func boolPtr(b bool) *bool { return &b }
