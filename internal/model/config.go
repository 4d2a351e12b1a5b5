package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" yaml:"addr"`

	// BaseURL is the externally visible root used to build "self" links.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Level  string `mapstructure:"level" yaml:"level"`
}

// SeedConfig points at a YAML bootstrap file applied on startup.
type SeedConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RemoteConfig describes a remote Jira instance whose create metadata is
// imported into the local store.
type RemoteConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TokenKey is the keyring entry holding the Personal Access Token.
	TokenKey string `mapstructure:"token_key" yaml:"token_key"`

	// Projects limits the import to these project keys. Empty imports all.
	Projects []string `mapstructure:"projects" yaml:"projects"`

	// WorkflowID is assigned to imported projects not yet known locally.
	WorkflowID int64 `mapstructure:"workflow_id" yaml:"workflow_id"`

	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// MailConfig configures the IMAP mail intake.
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// PasswordKey is the keyring entry holding the IMAP password.
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`

	// Project and IssueType are the key and name used for new issues.
	Project   string `mapstructure:"project" yaml:"project"`
	IssueType string `mapstructure:"issue_type" yaml:"issue_type"`

	// Reporter is used when the sender does not match a known user.
	Reporter string `mapstructure:"reporter" yaml:"reporter"`

	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Seed     SeedConfig     `mapstructure:"seed" yaml:"seed"`
	Remote   RemoteConfig   `mapstructure:"remote" yaml:"remote"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
}

// configDir returns ~/.config/issue-rest, or the working directory when the
// home directory cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "issue-rest")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/issue-rest/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(configDir(), "issues.db"),
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Remote: RemoteConfig{
			TokenKey:        "remote-jira-token",
			WorkflowID:      1,
			PollIntervalSec: 3600,
		},
		Mail: MailConfig{
			Port:            "993",
			TLS:             true,
			PasswordKey:     "mail-password",
			IssueType:       "Task",
			PollIntervalSec: 120,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("seed.path", "")
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.token_key", d.Remote.TokenKey)
	v.SetDefault("remote.workflow_id", d.Remote.WorkflowID)
	v.SetDefault("remote.poll_interval_sec", d.Remote.PollIntervalSec)
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", d.Mail.Port)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password_key", d.Mail.PasswordKey)
	v.SetDefault("mail.tls", d.Mail.TLS)
	v.SetDefault("mail.project", "")
	v.SetDefault("mail.issue_type", d.Mail.IssueType)
	v.SetDefault("mail.reporter", "")
	v.SetDefault("mail.poll_interval_sec", d.Mail.PollIntervalSec)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden by ISSUE_REST_* environment variables, e.g.
// ISSUE_REST_SERVER_ADDR. A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ISSUE_REST")
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

	if cfg.Remote.PollIntervalSec <= 0 {
		cfg.Remote.PollIntervalSec = 3600
	}
	if cfg.Mail.PollIntervalSec <= 0 {
		cfg.Mail.PollIntervalSec = 120
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

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
	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("seed", cfg.Seed)
	v.Set("remote", cfg.Remote)
	v.Set("mail", cfg.Mail)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
