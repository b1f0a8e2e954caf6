package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.BaseURL != "https://prakt.dziadu.dev" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if !cfg.Backup.Enabled || cfg.Backup.CleanupDays != 30 {
		t.Errorf("Backup = %+v", cfg.Backup)
	}
	if cfg.Git.Timeout != 2*time.Minute {
		t.Errorf("Git.Timeout = %s, want 2m", cfg.Git.Timeout)
	}
	if cfg.Log.MaxSizeMB != 5 || cfg.Log.MaxBackups != 10 {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Watch.Debounce != 2*time.Second || cfg.Watch.Interval != 0 {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardsync.toml")
	data := `source_path = "/srv/szkola"
target_path = "/srv/site"
workers = 2

[backup]
enabled = false

[git]
timeout = "30s"

[watch]
interval = "15m"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SourcePath != "/srv/szkola" || cfg.TargetPath != "/srv/site" || cfg.Workers != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Backup.Enabled {
		t.Error("Backup.Enabled = true, want false from file")
	}
	if cfg.Backup.Dir != "backups" {
		t.Errorf("Backup.Dir = %q, want default", cfg.Backup.Dir)
	}
	if cfg.Git.Timeout != 30*time.Second || cfg.Watch.Interval != 15*time.Minute {
		t.Errorf("durations = %s / %s", cfg.Git.Timeout, cfg.Watch.Interval)
	}
	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() of a missing explicit file succeeded")
	}
}

func TestLoadSearchWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SOURCE_REPO_PATH", "/legacy/src")
	t.Setenv("TARGET_REPO_PATH", "/legacy/dst")
	t.Setenv("CARDSYNC_TARGET_PATH", "/new/dst")
	t.Setenv("BACKUP_ENABLED", "false")
	t.Setenv("BACKUP_CLEANUP_DAYS", "7")
	t.Setenv("CARDSYNC_WORKERS", "8")
	t.Setenv("CARDSYNC_GIT_TIMEOUT", "45s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SourcePath != "/legacy/src" {
		t.Errorf("SourcePath = %q, want legacy value", cfg.SourcePath)
	}
	if cfg.TargetPath != "/new/dst" {
		t.Errorf("TargetPath = %q, prefixed variable should win", cfg.TargetPath)
	}
	if cfg.Backup.Enabled || cfg.Backup.CleanupDays != 7 {
		t.Errorf("Backup = %+v", cfg.Backup)
	}
	if cfg.Workers != 8 || cfg.Git.Timeout != 45*time.Second {
		t.Errorf("Workers = %d, Git.Timeout = %s", cfg.Workers, cfg.Git.Timeout)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 0
	cfg.Progress.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() accepted an invalid config")
	}
	for _, want := range []string{"source_path", "target_path", "workers", "progress.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	cfg := Defaults()
	cfg.SourcePath = "/srv/szkola 25-26"
	cfg.TargetPath = "/srv/site"
	cfg.Watch.Interval = time.Hour

	path := filepath.Join(t.TempDir(), "conf", FileName)
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		t.Fatalf("written file is not valid TOML: %v", err)
	}
	if watch, ok := raw["watch"].(map[string]any); !ok || watch["interval"] != "1h0m0s" {
		t.Errorf("watch table = %v", raw["watch"])
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	loaded.File = ""
	if *loaded != *cfg {
		t.Errorf("reloaded config differs:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestWriteYAML(t *testing.T) {
	cfg := Defaults()
	var buf bytes.Buffer
	if err := cfg.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error: %v", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if raw["workers"] != 4 {
		t.Errorf("workers = %v", raw["workers"])
	}
	if git, ok := raw["git"].(map[string]any); !ok || git["timeout"] != "2m0s" {
		t.Errorf("git = %v", raw["git"])
	}
}
