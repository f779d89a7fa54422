// Package config loads normalizer settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/internal/logging"
	"github.com/signalsfoundry/astrometry-normalizer/internal/observability"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// LogConfig configures the process logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// ReaderConfig controls how observation files are tokenized.
type ReaderConfig struct {
	Delimiter  string   `yaml:"delimiter"` // auto, comma, tab, whitespace or a single character
	NullTokens []string `yaml:"null_tokens"`
	Comment    string   `yaml:"comment"`

	// AllColumns parses every header column instead of only the observation columns.
	AllColumns bool `yaml:"all_columns"`
}

// ServerConfig holds listen addresses and the request size limit.
type ServerConfig struct {
	GRPCAddr        string `yaml:"grpc_addr"`
	MetricsAddr     string `yaml:"metrics_addr"`
	MaxContentBytes int    `yaml:"max_content_bytes"`
}

// TracingConfig overlays the OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ExportConfig names the optional SQLite mirror for normalized datasets.
type ExportConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Config is the top-level structure for normalizer.yaml.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Reader  ReaderConfig  `yaml:"reader"`
	Server  ServerConfig  `yaml:"server"`
	Tracing TracingConfig `yaml:"tracing"`
	Export  ExportConfig  `yaml:"export"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	tracing := observability.DefaultTracingConfig()
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Reader: ReaderConfig{
			Delimiter:  "auto",
			NullTokens: append([]string(nil), core.DefaultNullTokens...),
			Comment:    "#",
		},
		Server: ServerConfig{
			GRPCAddr:        ":50061",
			MetricsAddr:     ":9091",
			MaxContentBytes: 16 << 20,
		},
		Tracing: TracingConfig{
			Enabled:     tracing.Enabled,
			Exporter:    tracing.Exporter,
			Endpoint:    tracing.Endpoint,
			ServiceName: tracing.ServiceName,
			SampleRatio: tracing.SampleRatio,
		},
	}
}

// Load reads path over Default, applies environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays LOG_*, NORMALIZER_* and tracing variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("NORMALIZER_GRPC_ADDR"); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := os.Getenv("NORMALIZER_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("NORMALIZER_SQLITE_PATH"); v != "" {
		c.Export.SQLitePath = v
	}

	tc := observability.ApplyTracingEnv(c.TracingConfig())
	c.Tracing = TracingConfig{
		Enabled:     tc.Enabled,
		Exporter:    tc.Exporter,
		Endpoint:    tc.Endpoint,
		ServiceName: tc.ServiceName,
		SampleRatio: tc.SampleRatio,
	}
}

// Validate checks field values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := parseDelimiter(c.Reader.Delimiter); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Reader.Comment) > 1 {
		return fmt.Errorf("%w: reader.comment must be a single character, got %q", ErrInvalidConfig, c.Reader.Comment)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0,1], got %v", ErrInvalidConfig, c.Tracing.SampleRatio)
	}
	if c.Server.MaxContentBytes < 0 {
		return fmt.Errorf("%w: server.max_content_bytes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ReaderOptions converts the reader section for core.ReadTable.
func (c Config) ReaderOptions() (core.ReaderOptions, error) {
	delim, err := parseDelimiter(c.Reader.Delimiter)
	if err != nil {
		return core.ReaderOptions{}, err
	}
	opts := core.ReaderOptions{
		Delimiter:  delim,
		NullTokens: c.Reader.NullTokens,
	}
	if c.Reader.Comment != "" {
		opts.Comment, _ = utf8.DecodeRuneInString(c.Reader.Comment)
	}
	if !c.Reader.AllColumns {
		opts.Columns = model.InputColumns()
	}
	return opts, nil
}

// LoggingConfig converts the log section for logging.New.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     c.Log.Level,
		Format:    c.Log.Format,
		AddSource: c.Log.AddSource,
	}
}

// TracingConfig converts the tracing section for observability.InitTracing.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// ParseDelimiter maps a delimiter name or character to the rune ReaderOptions
// expects; zero means auto-detect.
func ParseDelimiter(s string) (rune, error) { return parseDelimiter(s) }

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case "comma", ",":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "whitespace", "space", " ":
		return ' ', nil
	case "semicolon", ";":
		return ';', nil
	case "pipe", "|":
		return '|', nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			return 0, fmt.Errorf("%w: delimiter %q is not allowed", ErrInvalidConfig, s)
		}
		return r, nil
	}
	return 0, fmt.Errorf("%w: unknown delimiter %q", ErrInvalidConfig, s)
}
