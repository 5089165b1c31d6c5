package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	VCS         VCSConfig         `mapstructure:"vcs"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// RemoteConfig describes the workflow orchestration server. The API key
// authenticates through a custom header, not a bearer scheme; the header
// name itself is configurable.
type RemoteConfig struct {
	BaseURL      string           `mapstructure:"base_url"`
	APIKey       string           `mapstructure:"api_key"`
	APIKeyHeader string           `mapstructure:"api_key_header"`
	Workflows    []WorkflowConfig `mapstructure:"workflows"`
}

type WorkflowConfig struct {
	ID       string `mapstructure:"id"`
	Schedule string `mapstructure:"schedule"`
}

type VCSConfig struct {
	RepoURL    string `mapstructure:"repo_url"`
	Token      string `mapstructure:"token"`
	Branch     string `mapstructure:"branch"`
	PathPrefix string `mapstructure:"path_prefix"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

type BackupConfig struct {
	LocalPath      string          `mapstructure:"local_path"`
	RetentionCount int             `mapstructure:"retention_count"`
	Compress       bool            `mapstructure:"compress"`
	ArchiveTargets []ArchiveTarget `mapstructure:"archive_targets"`
	Notify         NotifyConfig    `mapstructure:"notify"`
}

type ArchiveTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Local mirror (e.g. a mounted share)
	Path string `mapstructure:"path"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type DiagnosticsConfig struct {
	ProbeTimeoutMs int    `mapstructure:"probe_timeout_ms"`
	RemediesFile   string `mapstructure:"remedies_file"`
}

// Load reads the config file once, applies FLOWVAULT_* environment
// overrides (the usual home of api_key and token), and validates eagerly.
// The returned value is treated as immutable for the process lifetime.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "flowvault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("remote.api_key_header", "X-N8N-API-KEY")
	v.SetDefault("vcs.branch", "main")
	v.SetDefault("vcs.path_prefix", "workflows")
	v.SetDefault("vcs.api_base_url", "https://api.github.com")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 15000)
	v.SetDefault("backup.retention_count", 30)
	v.SetDefault("backup.compress", true)
	v.SetDefault("diagnostics.probe_timeout_ms", 5000)

	v.SetEnvPrefix("FLOWVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the whole configuration and reports every violation
// together instead of stopping at the first one.
func (c *Config) Validate() error {
	var errs error

	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if c.Remote.BaseURL == "" {
		add("remote.base_url is required")
	} else if _, err := url.ParseRequestURI(c.Remote.BaseURL); err != nil {
		add("remote.base_url is not a valid URL: %v", err)
	}
	if c.Remote.APIKey == "" {
		add("remote.api_key is required (set FLOWVAULT_REMOTE_API_KEY)")
	}
	if c.Remote.APIKeyHeader == "" {
		add("remote.api_key_header must not be empty")
	}
	if len(c.Remote.Workflows) == 0 {
		add("at least one remote.workflows entry is required")
	}
	for i, wf := range c.Remote.Workflows {
		if wf.ID == "" {
			add("remote.workflows[%d]: id is required", i)
		}
	}

	if c.VCS.RepoURL == "" {
		add("vcs.repo_url is required")
	}
	if c.VCS.Token == "" {
		add("vcs.token is required (set FLOWVAULT_VCS_TOKEN)")
	}

	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelayMs < 1 {
		add("retry.base_delay_ms must be positive")
	}
	if c.Retry.MaxDelayMs < c.Retry.BaseDelayMs {
		add("retry.max_delay_ms must not be smaller than retry.base_delay_ms")
	}

	if c.Backup.LocalPath == "" {
		add("backup.local_path is required")
	}
	if c.Backup.RetentionCount < 1 {
		add("backup.retention_count must be at least 1")
	}

	for i, target := range c.Backup.ArchiveTargets {
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "local":
			if target.Path == "" {
				add("backup.archive_targets[%d]: path is required for local", i)
			}
		case "s3":
			if target.Bucket == "" {
				add("backup.archive_targets[%d]: bucket is required for s3", i)
			}
			if target.Region == "" {
				add("backup.archive_targets[%d]: region is required for s3", i)
			}
		default:
			add("backup.archive_targets[%d]: unknown type %q", i, target.Type)
		}
	}

	if c.Backup.Notify.Telegram.Enabled {
		if c.Backup.Notify.Telegram.BotToken == "" {
			add("backup.notify.telegram.bot_token is required when enabled")
		}
		if c.Backup.Notify.Telegram.ChatID == "" {
			add("backup.notify.telegram.chat_id is required when enabled")
		}
	}

	return errs
}

// GetEnabledArchiveTargets filters the configured targets to enabled ones.
func (c *Config) GetEnabledArchiveTargets() []ArchiveTarget {
	var enabled []ArchiveTarget
	for _, target := range c.Backup.ArchiveTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
