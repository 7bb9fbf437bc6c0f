package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk overlay. Every field is optional; durations are
// strings so the same shape decodes from yaml, toml and json.
type fileConfig struct {
	Backend struct {
		URL               string `json:"url" yaml:"url" toml:"url"`
		ReconnectInterval string `json:"reconnect_interval" yaml:"reconnect_interval" toml:"reconnect_interval"`
		DialTimeout       string `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout"`
		LaunchCommand     string `json:"launch_command" yaml:"launch_command" toml:"launch_command"`
	} `json:"backend" yaml:"backend" toml:"backend"`
	Session struct {
		PollInterval      string   `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
		ResetDelay        string   `json:"reset_delay" yaml:"reset_delay" toml:"reset_delay"`
		AutoQueue         *bool    `json:"auto_queue" yaml:"auto_queue" toml:"auto_queue"`
		AdvancedPrompting *bool    `json:"advanced_prompting" yaml:"advanced_prompting" toml:"advanced_prompting"`
		SavePreviews      *bool    `json:"save_previews" yaml:"save_previews" toml:"save_previews"`
		PreviewRate       *float64 `json:"preview_rate" yaml:"preview_rate" toml:"preview_rate"`
	} `json:"session" yaml:"session" toml:"session"`
	Export struct {
		JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality" toml:"jpeg_quality"`
	} `json:"export" yaml:"export" toml:"export"`
	Paths struct {
		DataDir         string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
		TempDir         string `json:"temp_dir" yaml:"temp_dir" toml:"temp_dir"`
		WorkflowDir     string `json:"workflow_dir" yaml:"workflow_dir" toml:"workflow_dir"`
		DefaultWorkflow string `json:"default_workflow" yaml:"default_workflow" toml:"default_workflow"`
		DocumentPath    string `json:"document_path" yaml:"document_path" toml:"document_path"`
		SelectionPath   string `json:"selection_path" yaml:"selection_path" toml:"selection_path"`
	} `json:"paths" yaml:"paths" toml:"paths"`
	Server struct {
		Port    string `json:"port" yaml:"port" toml:"port"`
		Host    string `json:"host" yaml:"host" toml:"host"`
		Enabled *bool  `json:"enabled" yaml:"enabled" toml:"enabled"`
	} `json:"server" yaml:"server" toml:"server"`
	Logging struct {
		Level       string `json:"level" yaml:"level" toml:"level"`
		Development *bool  `json:"development" yaml:"development" toml:"development"`
	} `json:"logging" yaml:"logging" toml:"logging"`
}

// LoadFile loads environment configuration and overlays the file at path.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Overlay(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay applies the non-empty fields of the config file at path.
func (c *Config) Overlay(path string) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	case ".json":
		err = sonic.Unmarshal(b, &fc)
	case ".toml":
		err = toml.Unmarshal(b, &fc)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := c.apply(&fc); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) apply(fc *fileConfig) error {
	setString(&c.Backend.URL, fc.Backend.URL)
	setString(&c.Backend.LaunchCommand, fc.Backend.LaunchCommand)
	if err := setDuration(&c.Backend.ReconnectInterval, fc.Backend.ReconnectInterval); err != nil {
		return err
	}
	if err := setDuration(&c.Backend.DialTimeout, fc.Backend.DialTimeout); err != nil {
		return err
	}

	if err := setDuration(&c.Session.PollInterval, fc.Session.PollInterval); err != nil {
		return err
	}
	if err := setDuration(&c.Session.ResetDelay, fc.Session.ResetDelay); err != nil {
		return err
	}
	setBool(&c.Session.AutoQueue, fc.Session.AutoQueue)
	setBool(&c.Session.AdvancedPrompting, fc.Session.AdvancedPrompting)
	setBool(&c.Session.SavePreviews, fc.Session.SavePreviews)
	if fc.Session.PreviewRate != nil {
		c.Session.PreviewRate = *fc.Session.PreviewRate
	}

	if fc.Export.JPEGQuality != 0 {
		c.Export.JPEGQuality = fc.Export.JPEGQuality
	}

	setString(&c.Paths.DataDir, fc.Paths.DataDir)
	setString(&c.Paths.TempDir, fc.Paths.TempDir)
	setString(&c.Paths.WorkflowDir, fc.Paths.WorkflowDir)
	setString(&c.Paths.DefaultWorkflow, fc.Paths.DefaultWorkflow)
	setString(&c.Paths.DocumentPath, fc.Paths.DocumentPath)
	setString(&c.Paths.SelectionPath, fc.Paths.SelectionPath)

	setString(&c.Server.Port, fc.Server.Port)
	setString(&c.Server.Host, fc.Server.Host)
	setBool(&c.Server.Enabled, fc.Server.Enabled)

	setString(&c.Logging.Level, fc.Logging.Level)
	setBool(&c.Logging.Development, fc.Logging.Development)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", v, err)
	}
	*dst = d
	return nil
}
