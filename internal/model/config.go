package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig identifies the remote notification API.
type ServerConfig struct {
	// BaseURL is the root URL of the notification API (e.g., http://localhost:8080).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Profile names the keyring entry holding the API token.
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// SyncConfig controls the polling engine.
type SyncConfig struct {
	// PollIntervalSec is how often (in seconds) to poll while focused.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// PageSize is the number of notifications fetched per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// MaxStalenessSec forces a full resync once the last one is this old.
	MaxStalenessSec int `mapstructure:"max_staleness_sec" yaml:"max_staleness_sec"`
}

// FeedbackConfig holds new-notification feedback preferences.
type FeedbackConfig struct {
	Sound    bool `mapstructure:"sound" yaml:"sound"`
	ToastSec int  `mapstructure:"toast_sec" yaml:"toast_sec"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ServeConfig holds settings for the bundled reference server.
type ServeConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Feedback FeedbackConfig `mapstructure:"feedback" yaml:"feedback"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Serve    ServeConfig    `mapstructure:"serve" yaml:"serve"`
}

// PollInterval returns the poll interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalSec) * time.Second
}

// MaxStaleness returns the forced-resync bound as a duration.
func (c *AppConfig) MaxStaleness() time.Duration {
	return time.Duration(c.Sync.MaxStalenessSec) * time.Second
}

// ToastDuration returns how long a toast stays on screen.
func (c *AppConfig) ToastDuration() time.Duration {
	return time.Duration(c.Feedback.ToastSec) * time.Second
}

// ConfigDir returns ~/.config/inbox.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "inbox")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inbox/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL: "http://localhost:8080",
			Profile: "default",
		},
		Sync: SyncConfig{
			PollIntervalSec: 30,
			PageSize:        20,
			MaxStalenessSec: 300,
		},
		Feedback: FeedbackConfig{
			Sound:    true,
			ToastSec: 5,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "inbox.log"),
		},
		Serve: ServeConfig{
			Addr:   ":8080",
			DBPath: filepath.Join(ConfigDir(), "server.db"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.profile", d.Server.Profile)
	v.SetDefault("sync.poll_interval_sec", d.Sync.PollIntervalSec)
	v.SetDefault("sync.page_size", d.Sync.PageSize)
	v.SetDefault("sync.max_staleness_sec", d.Sync.MaxStalenessSec)
	v.SetDefault("feedback.sound", d.Feedback.Sound)
	v.SetDefault("feedback.toast_sec", d.Feedback.ToastSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.db_path", d.Serve.DBPath)
	v.SetDefault("serve.jwt_secret", d.Serve.JWTSecret)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory and INBOX_* environment variables
// override file values. If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("inbox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.PollIntervalSec <= 0 {
		cfg.Sync.PollIntervalSec = 30
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 20
	}
	if cfg.Feedback.ToastSec <= 0 {
		cfg.Feedback.ToastSec = 5
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("sync", cfg.Sync)
	v.Set("feedback", cfg.Feedback)
	v.Set("log", cfg.Log)
	v.Set("serve", cfg.Serve)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
