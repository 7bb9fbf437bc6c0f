package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Backend  BackendConfig
	Session  SessionConfig
	Export   ExportConfig
	Paths    PathsConfig
	Server   ServerConfig
	Logging  LogConfig
}

// BackendConfig holds the generation backend connection settings.
type BackendConfig struct {
	URL               string        `envconfig:"BACKEND_URL" default:"ws://127.0.0.1:6789"`
	ReconnectInterval time.Duration `envconfig:"BACKEND_RECONNECT_INTERVAL" default:"5s"`
	DialTimeout       time.Duration `envconfig:"BACKEND_DIAL_TIMEOUT" default:"3s"`
	LaunchCommand     string        `envconfig:"BACKEND_LAUNCH_COMMAND" default:""`
}

// SessionConfig holds generation session behaviour.
type SessionConfig struct {
	PollInterval      time.Duration `envconfig:"STATUS_POLL_INTERVAL" default:"2s"`
	ResetDelay        time.Duration `envconfig:"SESSION_RESET_DELAY" default:"1500ms"`
	AutoQueue         bool          `envconfig:"AUTO_QUEUE" default:"false"`
	AdvancedPrompting bool          `envconfig:"ADVANCED_PROMPTING" default:"true"`
	SavePreviews      bool          `envconfig:"SAVE_PREVIEWS" default:"true"`
	PreviewRate       float64       `envconfig:"PREVIEW_RATE" default:"10"`
}

// ExportConfig holds encoder settings. They are fixed for a process run.
type ExportConfig struct {
	JPEGQuality int `envconfig:"JPEG_QUALITY" default:"95"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	DataDir         string `envconfig:"DATA_DIR" default:"./data"`
	TempDir         string `envconfig:"TEMP_DIR" default:"./tmp"`
	WorkflowDir     string `envconfig:"WORKFLOW_DIR" default:"./workflows"`
	DefaultWorkflow string `envconfig:"DEFAULT_WORKFLOW" default:"inpaint_sdxl_fast.json"`
	DocumentPath    string `envconfig:"DOCUMENT_PATH" default:""`
	SelectionPath   string `envconfig:"SELECTION_PATH" default:""`
}

// ServerConfig holds the HTTP control surface settings.
type ServerConfig struct {
	Port    string `envconfig:"PORT" default:"8765"`
	Host    string `envconfig:"HOST" default:"127.0.0.1"`
	Enabled bool   `envconfig:"HTTP_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:               "ws://127.0.0.1:6789",
			ReconnectInterval: 5 * time.Second,
			DialTimeout:       3 * time.Second,
		},
		Session: SessionConfig{
			PollInterval:      2 * time.Second,
			ResetDelay:        1500 * time.Millisecond,
			AdvancedPrompting: true,
			SavePreviews:      true,
			PreviewRate:       10,
		},
		Export: ExportConfig{
			JPEGQuality: 95,
		},
		Paths: PathsConfig{
			DataDir:         "./data",
			TempDir:         "./tmp",
			WorkflowDir:     "./workflows",
			DefaultWorkflow: "inpaint_sdxl_fast.json",
		},
		Server: ServerConfig{
			Port:    "8765",
			Host:    "127.0.0.1",
			Enabled: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url is required")
	}
	if c.Backend.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect interval must be positive, got %s", c.Backend.ReconnectInterval)
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Session.PollInterval)
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be in [1,100], got %d", c.Export.JPEGQuality)
	}
	return nil
}

// StatusPath is the on-disk status mirror file.
func (p PathsConfig) StatusPath() string {
	return filepath.Join(p.DataDir, "status.json")
}

// PromptPath is the prompt store file.
func (p PathsConfig) PromptPath() string {
	return filepath.Join(p.DataDir, "prompt.json")
}

// RGBArtifactPath is the JPEG export of the unmasked document.
func (p PathsConfig) RGBArtifactPath() string {
	return filepath.Join(p.TempDir, "temp_image_rgb.jpg")
}

// InpaintArtifactPath is the PNG export whose alpha carries the edit region.
func (p PathsConfig) InpaintArtifactPath() string {
	return filepath.Join(p.TempDir, "temp_image_inpaint.png")
}

// ResultPath is where the final generated image is persisted.
func (p PathsConfig) ResultPath() string {
	return filepath.Join(p.DataDir, "temp_image_preview.png")
}

// PreviewPath is where live preview frames are persisted, minus extension.
func (p PathsConfig) PreviewPath() string {
	return filepath.Join(p.DataDir, "temp_preview_frame")
}
