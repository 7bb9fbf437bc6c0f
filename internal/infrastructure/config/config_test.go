package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Backend config
	assert.Equal(t, "ws://127.0.0.1:6789", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.ReconnectInterval)

	// Session config
	assert.Equal(t, 2*time.Second, cfg.Session.PollInterval)
	assert.False(t, cfg.Session.AutoQueue)
	assert.True(t, cfg.Session.SavePreviews)

	// Export config
	assert.Equal(t, 95, cfg.Export.JPEGQuality)

	// Paths
	assert.Equal(t, "inpaint_sdxl_fast.json", cfg.Paths.DefaultWorkflow)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "ws://127.0.0.1:6789", cfg.Backend.URL)
	assert.Equal(t, 2*time.Second, cfg.Session.PollInterval)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"BACKEND_URL":                "ws://backend:7000",
		"BACKEND_RECONNECT_INTERVAL": "250ms",
		"STATUS_POLL_INTERVAL":       "1s",
		"AUTO_QUEUE":                 "true",
		"JPEG_QUALITY":               "80",
		"DATA_DIR":                   "/var/bridge",
		"LOG_LEVEL":                  "debug",
		"LOG_DEV":                    "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://backend:7000", cfg.Backend.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Backend.ReconnectInterval)
	assert.Equal(t, time.Second, cfg.Session.PollInterval)
	assert.True(t, cfg.Session.AutoQueue)
	assert.Equal(t, 80, cfg.Export.JPEGQuality)
	assert.Equal(t, "/var/bridge", cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join("/var/bridge", "status.json"), cfg.Paths.StatusPath())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "jpeg quality too high", key: "JPEG_QUALITY", val: "101"},
		{name: "zero reconnect interval", key: "BACKEND_RECONNECT_INTERVAL", val: "0s"},
		{name: "unparseable duration", key: "STATUS_POLL_INTERVAL", val: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "bridge.yaml",
			content: `backend:
  url: ws://yaml:1
  reconnect_interval: 750ms
session:
  auto_queue: true
export:
  jpeg_quality: 70
`,
		},
		{
			name: "toml",
			file: "bridge.toml",
			content: `[backend]
url = "ws://yaml:1"
reconnect_interval = "750ms"

[session]
auto_queue = true

[export]
jpeg_quality = 70
`,
		},
		{
			name:    "json",
			file:    "bridge.json",
			content: `{"backend":{"url":"ws://yaml:1","reconnect_interval":"750ms"},"session":{"auto_queue":true},"export":{"jpeg_quality":70}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg := Default()
			require.NoError(t, cfg.Overlay(path))

			assert.Equal(t, "ws://yaml:1", cfg.Backend.URL)
			assert.Equal(t, 750*time.Millisecond, cfg.Backend.ReconnectInterval)
			assert.True(t, cfg.Session.AutoQueue)
			assert.Equal(t, 70, cfg.Export.JPEGQuality)

			// untouched fields keep their defaults
			assert.Equal(t, 2*time.Second, cfg.Session.PollInterval)
			assert.True(t, cfg.Session.SavePreviews)
		})
	}
}

func TestOverlayErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	cfg := Default()
	assert.Error(t, cfg.Overlay(""))
	assert.Error(t, cfg.Overlay(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, cfg.Overlay(write("bridge.ini", "url=x")))
	assert.Error(t, cfg.Overlay(write("bad.json", `{"backend": }`)))
	assert.Error(t, cfg.Overlay(write("bad-duration.yaml", "backend:\n  reconnect_interval: later\n")))
	assert.Error(t, cfg.Overlay(write("bad-quality.toml", "[export]\njpeg_quality = 500\n")))
}
