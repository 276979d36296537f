package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trygon117/ProjectCartesian/internal/bridge"
	"github.com/Trygon117/ProjectCartesian/internal/detector"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cartesian.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "FIREFOX", cfg.Panel.Target)
	assert.Equal(t, bridge.TopicProcessUpdate, cfg.Panel.Topic)
	assert.Equal(t, "0", cfg.Panel.Sentinel)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, time.Second, cfg.Monitor.Interval)
	assert.Equal(t, []DetectorEntry{DefaultDetector}, cfg.Monitor.Detectors)
	assert.Equal(t, "127.0.0.1:8700", cfg.Server.Listen)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Log.Slog.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	p := writeTOML(t, `
[panel]
target = "THUNDERBIRD"

[monitor]
interval = "250ms"

[[monitor.detectors]]
type = "pidfile"
path = "/run/tb.pid"

[[monitor.detectors]]
type = "command"
command = "pgrep -n thunderbird"

[log.slog]
level = "debug"
format = "json"

[log.file]
dir = "/tmp/logs"
max_backups = 9

[server]
listen = ":9000"
base_path = "/panel"

[metrics]
enabled = true
listen = ":9100"
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "THUNDERBIRD", cfg.Panel.Target)
	assert.Equal(t, "0", cfg.Panel.Sentinel)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.Interval)
	require.Len(t, cfg.Monitor.Detectors, 2)
	assert.Equal(t, "debug", cfg.Log.Slog.Level)
	assert.Equal(t, "json", cfg.Log.Slog.Format)
	assert.Equal(t, "/tmp/logs", cfg.Log.File.Dir)
	assert.Equal(t, 9, cfg.Log.File.MaxBackups)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "/panel", cfg.Server.BasePath)
	assert.True(t, cfg.Metrics.Enabled)

	det, err := cfg.Monitor.BuildDetector()
	require.NoError(t, err)
	first, ok := det.(detector.First)
	require.True(t, ok, "multiple detectors should build a First chain, got %T", det)
	assert.Equal(t, "pidfile:/run/tb.pid,cmd:pgrep -n thunderbird", first.Describe())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CARTESIAN_SERVER_LISTEN", "0.0.0.0:1234")
	t.Setenv("CARTESIAN_PANEL_TARGET", "CHROME")
	p := writeTOML(t, "[panel]\ntarget = \"FIREFOX\"\n")
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:1234", cfg.Server.Listen)
	assert.Equal(t, "CHROME", cfg.Panel.Target)
}

func TestLoadConfig_NoPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefault_IgnoresEnvironment(t *testing.T) {
	t.Setenv("CARTESIAN_MONITOR_INTERVAL", "bogus")
	t.Setenv("CARTESIAN_PANEL_TARGET", "CHROME")
	var cfg *Config
	require.NotPanics(t, func() { cfg = Default() })
	assert.Equal(t, "FIREFOX", cfg.Panel.Target)
	assert.Equal(t, time.Second, cfg.Monitor.Interval)
}

func TestLoadConfig_BadEnvReturnsError(t *testing.T) {
	t.Setenv("CARTESIAN_MONITOR_INTERVAL", "bogus")
	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor.interval")
}

func TestLoadConfig_TLSEnvOverride(t *testing.T) {
	t.Setenv("CARTESIAN_SERVER_TLS_MIN_VERSION", "1.2")
	t.Setenv("CARTESIAN_SERVER_TLS_MAX_VERSION", "1.3")
	t.Setenv("CARTESIAN_SERVER_TLS_VALID_DAYS", "30")
	t.Setenv("CARTESIAN_SERVER_TLS_AUTO_GENERATE", "true")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "1.2", cfg.Server.TLS.MinVersion)
	assert.Equal(t, "1.3", cfg.Server.TLS.MaxVersion)
	assert.Equal(t, 30, cfg.Server.TLS.ValidDays)
	assert.True(t, cfg.Server.TLS.AutoGenerate)
}

func TestLoadConfig_TopicTrimmed(t *testing.T) {
	cfg, err := LoadConfig(writeTOML(t, "[panel]\ntopic = \" process-update \"\n"))
	require.NoError(t, err)
	assert.Equal(t, bridge.TopicProcessUpdate, cfg.Panel.Topic)

	t.Setenv("CARTESIAN_PANEL_TOPIC", " custom\t")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Panel.Topic)
}

func TestValidate_RejectsPaddedTopic(t *testing.T) {
	cfg := Default()
	cfg.Panel.Topic = " process-update "
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panel.topic")
}

func TestLoadConfig_MonitorDisabled(t *testing.T) {
	p := writeTOML(t, "[monitor]\nenabled = false\n")
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.False(t, cfg.Monitor.Enabled)
	assert.Empty(t, cfg.Monitor.Detectors)
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown detector": "[[monitor.detectors]]\ntype = \"unknown\"\n",
		"pidfile no path":  "[[monitor.detectors]]\ntype = \"pidfile\"\n",
		"pid not positive": "[[monitor.detectors]]\ntype = \"pid\"\npid = 0\n",
		"command empty":    "[[monitor.detectors]]\ntype = \"command\"\n",
		"empty topic":      "[panel]\ntopic = \" \"\n",
		"empty sentinel":   "[panel]\nsentinel = \"\"\n",
		"bad interval":     "[monitor]\ninterval = \"-1s\"\n",
		"bad level":        "[log.slog]\nlevel = \"loud\"\n",
		"bad format":       "[log.slog]\nformat = \"xml\"\n",
		"metrics listen":   "[metrics]\nenabled = true\nlisten = \"\"\n",
		"server listen":    "[server]\nlisten = \"\"\n",
		"bad toml":         "[panel\n",
		"tls half pair":    "[server.tls]\nenabled = true\ncert_file = \"a.crt\"\n",
		"tls no source":    "[server.tls]\nenabled = true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeTOML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/definitely/not/exist.toml")
	assert.Error(t, err)
}

func TestDetectorEntryBuild(t *testing.T) {
	d, err := DetectorEntry{Type: "pid", PID: 7}.Build()
	require.NoError(t, err)
	assert.Equal(t, detector.PIDDetector{PID: 7}, d)

	d, err = DetectorEntry{Type: "command", Command: "pgrep x"}.Build()
	require.NoError(t, err)
	assert.Equal(t, "cmd:pgrep x", d.Describe())

	_, err = MonitorConfig{}.BuildDetector()
	assert.Error(t, err)
}
