// Package config loads and validates the labelgraph daemon
// configuration and the labels file that defines the label hierarchy,
// rules, and area flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arturpragacz/labelgraph/errors"
)

// Config is the complete daemon configuration.
type Config struct {
	LabelsFile string       `yaml:"labels_file"`
	HTTP       HTTPConfig   `yaml:"http"`
	NATS       NATSConfig   `yaml:"nats"`
	Logging    LogConfig    `yaml:"logging"`
	Areas      AreasConfig  `yaml:"areas"`
	Reload     ReloadConfig `yaml:"reload"`
}

// HTTPConfig configures the metrics and health endpoint listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NATSConfig configures the event transport connection.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Name          string        `yaml:"name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// AreasConfig configures the area emulation layer.
type AreasConfig struct {
	TieBreak string `yaml:"tie_break"` // id or name
}

// ReloadConfig configures configuration reload behavior.
type ReloadConfig struct {
	WatchSignals bool `yaml:"watch_signals"`
}

// Default returns the configuration used when no file or overrides are
// supplied.
func Default() *Config {
	return &Config{
		LabelsFile: "labels.yaml",
		HTTP:       HTTPConfig{Addr: ":9190"},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "labelgraph",
			SubjectPrefix: "labelgraph",
			Timeout:       5 * time.Second,
		},
		Logging: LogConfig{Level: "info", Format: "text"},
		Areas:   AreasConfig{TieBreak: "id"},
		Reload:  ReloadConfig{WatchSignals: true},
	}
}

// Load reads a daemon configuration file, applies defaults for absent
// fields, then environment overrides, and validates the result. An
// empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapFatal(errors.ErrConfigNotFound, "config", "Load",
					fmt.Sprintf("reading config file %s", path))
			}
			return nil, errors.WrapFatal(err, "config", "Load",
				fmt.Sprintf("reading config file %s", path))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load",
				fmt.Sprintf("parsing config file %s", path))
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps LABELGRAPH_* environment variables onto the
// configuration, taking precedence over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LABELGRAPH_LABELS_FILE"); v != "" {
		c.LabelsFile = v
	}
	if v := os.Getenv("LABELGRAPH_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LABELGRAPH_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("LABELGRAPH_NATS_SUBJECT_PREFIX"); v != "" {
		c.NATS.SubjectPrefix = v
	}
	if v := os.Getenv("LABELGRAPH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LABELGRAPH_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LABELGRAPH_AREA_TIE_BREAK"); v != "" {
		c.Areas.TieBreak = v
	}
}

// Validate checks the configuration for internally inconsistent or
// unusable values.
func (c *Config) Validate() error {
	var diags errors.Diagnostics

	if c.LabelsFile == "" {
		diags.Addf(errors.ErrMissingConfig, "labels_file must be set")
	}
	if c.NATS.URL != "" && !strings.HasPrefix(c.NATS.URL, "nats://") &&
		!strings.HasPrefix(c.NATS.URL, "tls://") {
		diags.Addf(errors.ErrInvalidConfig, "nats.url %q must use nats:// or tls://", c.NATS.URL)
	}
	if c.NATS.SubjectPrefix != "" && strings.ContainsAny(c.NATS.SubjectPrefix, " \t*>") {
		diags.Addf(errors.ErrInvalidConfig, "nats.subject_prefix %q contains invalid characters", c.NATS.SubjectPrefix)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		diags.Addf(errors.ErrInvalidConfig, "logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		diags.Addf(errors.ErrInvalidConfig, "logging.format %q is not one of text, json", c.Logging.Format)
	}

	switch c.Areas.TieBreak {
	case "id", "name":
	default:
		diags.Addf(errors.ErrInvalidConfig, "areas.tie_break %q is not one of id, name", c.Areas.TieBreak)
	}

	if c.NATS.Timeout < 0 {
		diags.Addf(errors.ErrInvalidConfig, "nats.timeout must not be negative")
	}

	return diags.Err()
}

// String renders a single-line summary safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf("labels_file=%s http=%s nats=%s log=%s/%s",
		c.LabelsFile, c.HTTP.Addr, c.NATS.URL, c.Logging.Level, c.Logging.Format)
}
