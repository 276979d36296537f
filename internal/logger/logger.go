// Package logger builds the application slog.Logger from configuration.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
	DefaultFileName   = "cartesian.log"
)

// Config describes the application log output.
type Config struct {
	Slog SlogConfig `mapstructure:"slog"`
	File FileConfig `mapstructure:"file"`
}

// SlogConfig controls level and formatting.
type SlogConfig struct {
	Level      string `mapstructure:"level"`  // debug|info|warn|error (default info)
	Format     string `mapstructure:"format"` // text|json (default text)
	Color      bool   `mapstructure:"color"`
	TimeStamps bool   `mapstructure:"timestamps"`
	Source     bool   `mapstructure:"source"`
}

// FileConfig enables a rotating log file. If Path is empty and Dir is set the
// file is Dir/cartesian.log. Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Dir        string `mapstructure:"dir"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// FilePath resolves the log file destination, "" when file logging is off.
func (f FileConfig) FilePath() string {
	if f.Path != "" {
		return f.Path
	}
	if f.Dir != "" {
		return filepath.Join(f.Dir, DefaultFileName)
	}
	return ""
}

// Writer returns a rotating writer for the configured file, or nil.
func (f FileConfig) Writer() io.WriteCloser {
	p := f.FilePath()
	if p == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   p,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewSlogger builds a logger writing to stderr, or to the rotating file when
// one is configured. The returned closer must be closed on shutdown; it is a
// no-op for stderr.
func (c Config) NewSlogger() (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Slog.Level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	color := c.Slog.Color
	if fw := c.File.Writer(); fw != nil {
		w, closer = fw, fw
		color = false // no escape codes in files
	}
	h, err := c.Slog.handler(w, level, color)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(h), closer, nil
}

func (s SlogConfig) handler(w io.Writer, level slog.Level, color bool) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level, AddSource: s.Source}
	if !s.TimeStamps {
		opts.ReplaceAttr = dropTime
	}
	switch strings.ToLower(s.Format) {
	case "", "text":
		if color {
			return NewColorTextHandler(w, opts), nil
		}
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, fmt.Errorf("unknown log format %q", s.Format)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
