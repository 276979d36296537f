// Package config loads the panel configuration from a TOML file with viper.
//
// Example:
//
//	[panel]
//	target = "FIREFOX"
//
//	[monitor]
//	interval = "1s"
//	[[monitor.detectors]]
//	type = "command"
//	command = "pgrep -n -i firefox"
//
//	[server]
//	listen = "127.0.0.1:8700"
//	base_path = "/api"
//
// Every scalar key can be overridden from the environment with the
// CARTESIAN_ prefix, e.g. CARTESIAN_SERVER_LISTEN or CARTESIAN_LOG_SLOG_LEVEL.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
	"github.com/Trygon117/ProjectCartesian/internal/detector"
	"github.com/Trygon117/ProjectCartesian/internal/logger"
)

const EnvPrefix = "CARTESIAN"

type Config struct {
	Panel   PanelConfig   `toml:"panel" mapstructure:"panel"`
	Monitor MonitorConfig `toml:"monitor" mapstructure:"monitor"`
	Log     logger.Config `toml:"log" mapstructure:"log"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type PanelConfig struct {
	Target   string `toml:"target" mapstructure:"target"`
	Topic    string `toml:"topic" mapstructure:"topic"`
	Sentinel string `toml:"sentinel" mapstructure:"sentinel"`
}

type MonitorConfig struct {
	Enabled   bool            `toml:"enabled" mapstructure:"enabled"`
	Interval  time.Duration   `toml:"interval" mapstructure:"interval"`
	Detectors []DetectorEntry `toml:"detectors" mapstructure:"detectors"`
}

type DetectorEntry struct {
	Type    string `toml:"type" mapstructure:"type"`
	Path    string `toml:"path" mapstructure:"path"`
	PID     int    `toml:"pid" mapstructure:"pid"`
	Command string `toml:"command" mapstructure:"command"`
}

type ServerConfig struct {
	Enabled  bool      `toml:"enabled" mapstructure:"enabled"`
	Listen   string    `toml:"listen" mapstructure:"listen"`
	BasePath string    `toml:"base_path" mapstructure:"base_path"`
	TLS      TLSConfig `toml:"tls" mapstructure:"tls"`
}

// TLSConfig serves the status API over HTTPS. Either CertFile/KeyFile or Dir
// must be set; with AutoGenerate a self-signed pair is created in Dir.
type TLSConfig struct {
	Enabled      bool     `toml:"enabled" mapstructure:"enabled"`
	CertFile     string   `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string   `toml:"key_file" mapstructure:"key_file"`
	Dir          string   `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool     `toml:"auto_generate" mapstructure:"auto_generate"`
	Hosts        []string `toml:"hosts" mapstructure:"hosts"`
	ValidDays    int      `toml:"valid_days" mapstructure:"valid_days"`
	MinVersion   string   `toml:"min_version" mapstructure:"min_version"`
	MaxVersion   string   `toml:"max_version" mapstructure:"max_version"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

var defaults = map[string]any{
	"panel.target":             "FIREFOX",
	"panel.topic":              bridge.TopicProcessUpdate,
	"panel.sentinel":           "0",
	"monitor.enabled":          true,
	"monitor.interval":         "1s",
	"log.slog.level":           "info",
	"log.slog.format":          "text",
	"log.slog.color":           false,
	"log.slog.timestamps":      true,
	"log.slog.source":          false,
	"log.file.dir":             "",
	"log.file.path":            "",
	"log.file.max_size_mb":     logger.DefaultMaxSizeMB,
	"log.file.max_backups":     logger.DefaultMaxBackups,
	"log.file.max_age_days":    logger.DefaultMaxAgeDays,
	"log.file.compress":        false,
	"server.enabled":           true,
	"server.listen":            "127.0.0.1:8700",
	"server.base_path":         "/api",
	"server.tls.enabled":       false,
	"server.tls.cert_file":     "",
	"server.tls.key_file":      "",
	"server.tls.dir":           "",
	"server.tls.auto_generate": false,
	"server.tls.hosts":         []string{},
	"server.tls.valid_days":    0,
	"server.tls.min_version":   "",
	"server.tls.max_version":   "",
	"metrics.enabled":          false,
	"metrics.listen":           "127.0.0.1:9700",
}

// DefaultDetector is used when the monitor is enabled without detectors.
var DefaultDetector = DetectorEntry{Type: "command", Command: "pgrep -n -i firefox"}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	return v
}

// Default returns the built-in configuration. Environment overrides are not
// applied; use LoadConfig("") for those.
func Default() *Config {
	cfg, err := decode(newViper(false))
	if err != nil {
		// defaults are static; failure here is a programming error
		panic(err)
	}
	return cfg
}

// LoadConfig reads path (optional) on top of defaults and environment
// overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	v := newViper(true)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Panel.Topic = strings.TrimSpace(cfg.Panel.Topic)
	if cfg.Monitor.Enabled && len(cfg.Monitor.Detectors) == 0 {
		cfg.Monitor.Detectors = []DetectorEntry{DefaultDetector}
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed with defaults.
func (c *Config) Validate() error {
	if c.Panel.Topic == "" {
		return fmt.Errorf("panel.topic must not be empty")
	}
	if strings.TrimSpace(c.Panel.Topic) != c.Panel.Topic {
		return fmt.Errorf("panel.topic %q must not have surrounding whitespace", c.Panel.Topic)
	}
	if c.Panel.Sentinel == "" {
		return fmt.Errorf("panel.sentinel must not be empty")
	}
	if c.Monitor.Enabled {
		if c.Monitor.Interval <= 0 {
			return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
		}
		if _, err := c.Monitor.BuildDetector(); err != nil {
			return err
		}
	}
	if _, err := logger.ParseLevel(c.Log.Slog.Level); err != nil {
		return fmt.Errorf("log.slog.level: %w", err)
	}
	switch strings.ToLower(c.Log.Slog.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.slog.format: unknown format %q", c.Log.Slog.Format)
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set when server is enabled")
	}
	if t := c.Server.TLS; c.Server.Enabled && t.Enabled {
		if (t.CertFile == "") != (t.KeyFile == "") {
			return fmt.Errorf("server.tls: cert_file and key_file must be set together")
		}
		if t.CertFile == "" && t.Dir == "" {
			return fmt.Errorf("server.tls: set cert_file/key_file or dir")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}

// Build converts one entry into a detector.
func (d DetectorEntry) Build() (detector.Detector, error) {
	switch d.Type {
	case "pidfile":
		if d.Path == "" {
			return nil, fmt.Errorf("detector pidfile requires path")
		}
		return detector.PIDFileDetector{PIDFile: d.Path}, nil
	case "pid":
		if d.PID <= 0 {
			return nil, fmt.Errorf("detector pid requires positive pid")
		}
		return detector.PIDDetector{PID: d.PID}, nil
	case "command":
		if d.Command == "" {
			return nil, fmt.Errorf("detector command requires command")
		}
		return detector.CommandDetector{Command: d.Command}, nil
	default:
		return nil, fmt.Errorf("unknown detector type %q", d.Type)
	}
}

// BuildDetector returns the configured detectors, tried in order.
func (m MonitorConfig) BuildDetector() (detector.Detector, error) {
	if len(m.Detectors) == 0 {
		return nil, fmt.Errorf("monitor.detectors: at least one detector is required")
	}
	dets := make(detector.First, 0, len(m.Detectors))
	for i, e := range m.Detectors {
		d, err := e.Build()
		if err != nil {
			return nil, fmt.Errorf("monitor.detectors[%d]: %w", i, err)
		}
		dets = append(dets, d)
	}
	if len(dets) == 1 {
		return dets[0], nil
	}
	return dets, nil
}
