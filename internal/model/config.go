package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig holds the IMAP connection settings for the watched inbox.
type MailboxConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`

	Username string `mapstructure:"username" yaml:"username"`

	// Password may be empty, in which case the system keyring is
	// consulted under the "imap:<username>" key.
	Password string `mapstructure:"password" yaml:"password"`

	// SSL selects implicit TLS; STARTTLS is used when false.
	SSL bool `mapstructure:"ssl" yaml:"ssl"`

	Folder string `mapstructure:"folder" yaml:"folder"`

	// FetchLimit bounds how many of the most recent messages are
	// reprocessed each poll.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// WindowDays bounds the IMAP search to messages this recent.
	WindowDays int `mapstructure:"window_days" yaml:"window_days"`

	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// ContentConfig holds the on-disk image store settings.
type ContentConfig struct {
	// Dir is where extracted mailpiece images are written.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// PublicBase is the URL prefix under which Dir is served.
	PublicBase string `mapstructure:"public_base" yaml:"public_base"`
}

// DatabaseConfig holds the snapshot database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds the state API settings.
type ServerConfig struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	Content  ContentConfig  `mapstructure:"content" yaml:"content"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtrack/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtrack", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "mailtrack")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	data := defaultDataDir()
	return &AppConfig{
		Mailbox: MailboxConfig{
			Port:            "993",
			SSL:             true,
			Folder:          "INBOX",
			FetchLimit:      25,
			WindowDays:      7,
			PollIntervalSec: 120,
		},
		Content: ContentConfig{
			Dir:        filepath.Join(data, "images"),
			PublicBase: "/local/mailtrack/usps",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(data, "mailtrack.db"),
		},
		Server: ServerConfig{
			Addr:    ":8089",
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration.
// Environment variables prefixed with MAILTRACK_ override file values
// (e.g. MAILTRACK_MAILBOX_PASSWORD).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("mailbox.port", defaults.Mailbox.Port)
	v.SetDefault("mailbox.ssl", defaults.Mailbox.SSL)
	v.SetDefault("mailbox.folder", defaults.Mailbox.Folder)
	v.SetDefault("mailbox.fetch_limit", defaults.Mailbox.FetchLimit)
	v.SetDefault("mailbox.window_days", defaults.Mailbox.WindowDays)
	v.SetDefault("mailbox.poll_interval_sec", defaults.Mailbox.PollIntervalSec)
	v.SetDefault("content.dir", defaults.Content.Dir)
	v.SetDefault("content.public_base", defaults.Content.PublicBase)
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.enabled", defaults.Server.Enabled)
	v.SetDefault("log.level", defaults.Log.Level)

	v.SetEnvPrefix("mailtrack")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
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

	v.Set("mailbox", cfg.Mailbox)
	v.Set("content", cfg.Content)
	v.Set("database", cfg.Database)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
