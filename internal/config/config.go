package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig  `yaml:"server"`
	Session      SessionConfig `yaml:"session"`
	SettingsPath string        `yaml:"settings_path"`
	Log          LogConfig     `yaml:"log"`
	Mock         MockConfig    `yaml:"mock"`
}

type ServerConfig struct {
	// BaseURL is the backend origin; its scheme picks ws or wss.
	BaseURL string `yaml:"base_url"`
	Path    string `yaml:"path"`
}

type SessionConfig struct {
	Protocol        string        `yaml:"protocol"`
	HandshakeAction string        `yaml:"handshake_action"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	CloseTimeout    time.Duration `yaml:"close_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MockConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	SessionToken string `yaml:"session_token"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:3000",
			Path:    "/ws",
		},
		Session: SessionConfig{
			Protocol:        "openhands",
			HandshakeAction: "initialize",
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			CloseTimeout:    5 * time.Second,
		},
		SettingsPath: defaultSettingsPath(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mock: MockConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
	}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(dir, "agent-workspace", "settings.yaml")
}

// Load reads the yaml file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the channel cannot run with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	if c.Session.Protocol == "" {
		return errors.New("session.protocol is required")
	}
	if c.Session.HandshakeAction == "" {
		return errors.New("session.handshake_action is required")
	}
	if c.Session.PingInterval <= 0 || c.Session.PongTimeout <= 0 {
		return errors.New("session.ping_interval and session.pong_timeout must be positive")
	}
	if c.Session.PingInterval >= c.Session.PongTimeout {
		return fmt.Errorf("session.ping_interval (%s) must be shorter than session.pong_timeout (%s)",
			c.Session.PingInterval, c.Session.PongTimeout)
	}
	if c.Mock.Port < 0 || c.Mock.Port > 65535 {
		return fmt.Errorf("mock.port %d out of range", c.Mock.Port)
	}
	return nil
}
