// Package config loads cardsync settings from defaults, a TOML file and the
// environment, in increasing order of precedence.
//
// Environment variables use the CARDSYNC_ prefix with dots replaced by
// underscores (CARDSYNC_BACKUP_CLEANUP_DAYS). The variable names of the
// older .env file (SOURCE_REPO_PATH, TARGET_REPO_PATH, BACKUP_ENABLED,
// BACKUP_CLEANUP_DAYS) are honored as well.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dziadu-dev/cardsync/internal/content"
)

// FileName is the config file searched for when no path is given.
const FileName = "cardsync.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CARDSYNC"

// Config is the full set of settings.
type Config struct {
	SourcePath string         `mapstructure:"source_path"`
	TargetPath string         `mapstructure:"target_path"`
	BaseURL    string         `mapstructure:"base_url"`
	Workers    int            `mapstructure:"workers"`
	CachePath  string         `mapstructure:"cache_path"`
	Backup     BackupConfig   `mapstructure:"backup"`
	Log        LogConfig      `mapstructure:"log"`
	Git        GitConfig      `mapstructure:"git"`
	History    HistoryConfig  `mapstructure:"history"`
	Watch      WatchConfig    `mapstructure:"watch"`
	Progress   ProgressConfig `mapstructure:"progress"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// BackupConfig controls page backups.
type BackupConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"`
	CleanupDays int    `mapstructure:"cleanup_days"`
}

// LogConfig controls the rotating log file. An empty File disables it.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// GitConfig controls git invocations.
type GitConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// HistoryConfig locates the run history database. An empty Path disables it.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// WatchConfig controls automatic updates.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Interval time.Duration `mapstructure:"interval"`
}

// ProgressConfig controls the progress stream. Port 0 disables it.
type ProgressConfig struct {
	Port int `mapstructure:"port"`
}

var defaults = map[string]any{
	"source_path":         "",
	"target_path":         "",
	"base_url":            content.DefaultBaseURL,
	"workers":             4,
	"cache_path":          content.DefaultCachePath,
	"backup.enabled":      true,
	"backup.dir":          "backups",
	"backup.cleanup_days": 30,
	"log.file":            "logs/update.log",
	"log.max_size_mb":     5,
	"log.max_backups":     10,
	"git.timeout":         "2m",
	"history.path":        ".cache/history.db",
	"watch.debounce":      "2s",
	"watch.interval":      "0s",
	"progress.port":       0,
}

// legacyEnv maps keys to the variable names of the older .env file.
var legacyEnv = map[string]string{
	"source_path":         "SOURCE_REPO_PATH",
	"target_path":         "TARGET_REPO_PATH",
	"backup.enabled":      "BACKUP_ENABLED",
	"backup.cleanup_days": "BACKUP_CLEANUP_DAYS",
}

func newViper(withEnv bool) *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	if !withEnv {
		return v
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// The prefixed name wins over the legacy one.
		_ = v.BindEnv(key, prefixed, legacy)
	}
	return v
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cfg, err := decode(newViper(false))
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the configuration. With an empty path, cardsync.toml is
// searched for in the working directory and the user config directory; a
// missing file is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper(true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "cardsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.SourcePath == "" {
		errs = append(errs, errors.New("source_path is not set"))
	}
	if c.TargetPath == "" {
		errs = append(errs, errors.New("target_path is not set"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Backup.CleanupDays < 0 {
		errs = append(errs, fmt.Errorf("backup.cleanup_days must not be negative, got %d", c.Backup.CleanupDays))
	}
	if c.Git.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("git.timeout must be positive, got %s", c.Git.Timeout))
	}
	if c.Watch.Debounce < 0 || c.Watch.Interval < 0 {
		errs = append(errs, errors.New("watch durations must not be negative"))
	}
	if c.Progress.Port < 0 || c.Progress.Port > 65535 {
		errs = append(errs, fmt.Errorf("progress.port out of range: %d", c.Progress.Port))
	}
	return errors.Join(errs...)
}

// settings flattens the config into nested maps keyed like the file.
func (c *Config) settings() map[string]any {
	return map[string]any{
		"source_path": c.SourcePath,
		"target_path": c.TargetPath,
		"base_url":    c.BaseURL,
		"workers":     c.Workers,
		"cache_path":  c.CachePath,
		"backup": map[string]any{
			"enabled":      c.Backup.Enabled,
			"dir":          c.Backup.Dir,
			"cleanup_days": c.Backup.CleanupDays,
		},
		"log": map[string]any{
			"file":        c.Log.File,
			"max_size_mb": c.Log.MaxSizeMB,
			"max_backups": c.Log.MaxBackups,
		},
		"git": map[string]any{
			"timeout": c.Git.Timeout.String(),
		},
		"history": map[string]any{
			"path": c.History.Path,
		},
		"watch": map[string]any{
			"debounce": c.Watch.Debounce.String(),
			"interval": c.Watch.Interval.String(),
		},
		"progress": map[string]any{
			"port": c.Progress.Port,
		},
	}
}

// WriteTOML encodes the config in the file format Load reads.
func (c *Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c.settings())
}

// WriteYAML encodes the config as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.settings()); err != nil {
		return err
	}
	return enc.Close()
}

// Save writes the config to path as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := c.WriteTOML(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}
