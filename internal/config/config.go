/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version" validate:"min=1"`
	General       GeneralConfig   `yaml:"general"`
	Storage       StorageConfig   `yaml:"storage"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

type GeneralConfig struct {
	TelemetryOptIn     bool   `yaml:"telemetry_opt_in"`
	DefaultLanguage    string `yaml:"default_language" validate:"omitempty,bcp47_language_tag"`
	DefaultProjectKind string `yaml:"default_project_kind" validate:"omitempty,oneof=novel short_story article_magazine article_social poetry screenplay essay research_paper"`
}

type StorageConfig struct {
	// BackupDir empty means <DataDir>/backups.
	BackupDir    string `yaml:"backup_dir"`
	MaxBackups   int    `yaml:"max_backups" validate:"min=1,max=100"`
	MaxArchiveMB int    `yaml:"max_archive_mb" validate:"min=1,max=4096"`
	BackupOnSave bool   `yaml:"backup_on_save"`
	SearchIndex  bool   `yaml:"search_index"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	URL       string `yaml:"url" validate:"omitempty,url"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"min=0,max=60000"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, DefaultLanguage: "it", DefaultProjectKind: "novel"},
		Storage:       StorageConfig{MaxBackups: 5, MaxArchiveMB: 100, BackupOnSave: true, SearchIndex: true},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Telemetry:     TelemetryConfig{TimeoutMs: 3000},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "NOV_CONFIG"
	EnvDataDir        = "NOV_DATA_DIR"
	EnvTelemetryOptIn = "NOV_TELEMETRY_OPT_IN"
	EnvTelemetryURL   = "NOV_TELEMETRY_URL"
	EnvBackupDir      = "NOV_BACKUP_DIR"
	EnvMaxBackups     = "NOV_MAX_BACKUPS"
	EnvMaxArchiveMB   = "NOV_MAX_ARCHIVE_MB"
	EnvBackupOnSave   = "NOV_BACKUP_ON_SAVE"
	EnvSearchIndex    = "NOV_SEARCH_INDEX"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "NOV_LOG_LEVEL"
	EnvLogFormat = "NOV_LOG_FORMAT"
	EnvLogSource = "NOV_LOG_SOURCE"
	EnvLogFile   = "NOV_LOG_FILE"
)

// ConfigPath returns the per-user config file path. NOV_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	home := os.Getenv("HOME")
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Novelist")
	case "darwin":
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, "Library", "Application Support", "Novelist")
	default:
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "novelist")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir is the per-user data directory (backups, crash reports).
func DataDir() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvDataDir)); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".thenovelist"), nil
}

// BackupDir resolves the directory backups are written to.
func (c AppConfig) BackupDir() (string, error) {
	if d := strings.TrimSpace(c.Storage.BackupDir); d != "" {
		return d, nil
	}
	base, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "backups"), nil
}

// MaxArchiveBytes is the archive size ceiling enforced before decompression.
func (s StorageConfig) MaxArchiveBytes() int64 {
	mb := s.MaxArchiveMB
	if mb <= 0 {
		mb = Defaults().Storage.MaxArchiveMB
	}
	return int64(mb) << 20
}

// Timeout returns the telemetry HTTP timeout.
func (t TelemetryConfig) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return time.Duration(Defaults().Telemetry.TimeoutMs) * time.Millisecond
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Load reads the user config file (if present), applies defaults, merges
// environment overrides and validates the result.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save validates and writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies file values over defaults. src was decoded on top of
// Defaults, so absent keys already carry their default.
func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if v := strings.TrimSpace(src.General.DefaultLanguage); v != "" {
		dst.General.DefaultLanguage = v
	}
	if v := strings.TrimSpace(src.General.DefaultProjectKind); v != "" {
		dst.General.DefaultProjectKind = strings.ToLower(v)
	}
	// storage
	dst.Storage.BackupDir = strings.TrimSpace(src.Storage.BackupDir)
	dst.Storage.MaxBackups = src.Storage.MaxBackups
	dst.Storage.MaxArchiveMB = src.Storage.MaxArchiveMB
	dst.Storage.BackupOnSave = src.Storage.BackupOnSave
	dst.Storage.SearchIndex = src.Storage.SearchIndex
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// telemetry
	dst.Telemetry.URL = strings.TrimSpace(src.Telemetry.URL)
	dst.Telemetry.TimeoutMs = src.Telemetry.TimeoutMs
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryURL)); v != "" {
		cfg.Telemetry.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackupDir)); v != "" {
		cfg.Storage.BackupDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxBackups)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxBackups = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxArchiveMB)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxArchiveMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackupOnSave)); v != "" {
		cfg.Storage.BackupOnSave = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSearchIndex)); v != "" {
		cfg.Storage.SearchIndex = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"telemetry.url":            EnvTelemetryURL,
	"storage.backup_dir":       EnvBackupDir,
	"storage.max_backups":      EnvMaxBackups,
	"storage.max_archive_mb":   EnvMaxArchiveMB,
	"storage.backup_on_save":   EnvBackupOnSave,
	"storage.search_index":     EnvSearchIndex,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envByKey[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
