/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the per-user config dir,
// DSE_* environment overrides on top, and the upload token from the OS keyring.
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

	"designeditor/internal/history"
	applog "designeditor/internal/log"
	"designeditor/internal/telemetry"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// ConfigVersion is bumped when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
const ConfigVersion = 1

type EditorConfig struct {
	DebounceMs      int    `yaml:"debounce_ms"`
	SaveDebounceMs  int    `yaml:"save_debounce_ms"`
	MaxHistory      int    `yaml:"max_history"`
	MaxHistoryBytes int    `yaml:"max_history_bytes"`
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	Background      string `yaml:"background"`
}

type ExportConfig struct {
	PreviewScale float64 `yaml:"preview_scale"`
	UploadScale  float64 `yaml:"upload_scale"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
}

type UploadConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	KeyPrefix string `yaml:"key_prefix"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type StorageConfig struct {
	DataDir          string `yaml:"data_dir"`
	KeepSaves        int    `yaml:"keep_saves"`
	PreviewsMaxBytes int64  `yaml:"previews_max_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Editor        EditorConfig    `yaml:"editor"`
	Export        ExportConfig    `yaml:"export"`
	Upload        UploadConfig    `yaml:"upload"`
	Storage       StorageConfig   `yaml:"storage"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: ConfigVersion,
		Editor: EditorConfig{
			DebounceMs: 500, SaveDebounceMs: 500,
			MaxHistory: history.DefaultMaxEntries, MaxHistoryBytes: history.DefaultMaxBytes,
			Width: 900, Height: 1200, Background: "#ffffff",
		},
		Export:    ExportConfig{PreviewScale: 1, UploadScale: 2, JPEGQuality: 90},
		Upload:    UploadConfig{BaseURL: "", TimeoutMs: 30000, KeyPrefix: "designs/"},
		Storage:   StorageConfig{DataDir: defaultDataDir(), KeepSaves: 50, PreviewsMaxBytes: 64 << 20},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "DSE_CONFIG"
	EnvDebounceMs     = "DSE_DEBOUNCE_MS"
	EnvSaveDebounceMs = "DSE_SAVE_DEBOUNCE_MS"
	EnvUploadURL      = "DSE_UPLOAD_URL"
	EnvUploadTimeout  = "DSE_UPLOAD_TIMEOUT_MS"
	EnvUploadPrefix   = "DSE_UPLOAD_KEY_PREFIX"
	EnvUploadToken    = "DSE_UPLOAD_TOKEN"
	EnvDataDir        = "DSE_DATA_DIR"
	EnvJPEGQuality    = "DSE_JPEG_QUALITY"
)

// Service/keys for OS keyring.
const (
	keyringService = "DesignEditor"
	keyringToken   = "upload_token"
)

// tokenStore abstracts the keyring so tests can swap it.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore with github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// SetTokenStore replaces the token store and returns the previous one.
func SetTokenStore(s TokenStore) TokenStore {
	old := tokenStore
	tokenStore = s
	return old
}

func userDir(name string) string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "DesignEditor", name)
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "DesignEditor", name)
	default:
		return filepath.Join(os.Getenv("HOME"), ".config", "designeditor", name)
	}
}

func defaultDataDir() string { return userDir("data") }

// ConfigPath returns the per-user config file path; DSE_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir := filepath.Dir(userDir("x"))
	if dir == "" || dir == "." {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and environment
// overrides. The upload token is returned separately.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file. A missing file is not an error; a malformed
// one is.
func LoadFrom(path string) (AppConfig, string, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, token(), nil
}

// token prefers DSE_UPLOAD_TOKEN over the keyring; keyring errors mean no token.
func token() string {
	if v := strings.TrimSpace(os.Getenv(EnvUploadToken)); v != "" {
		return v
	}
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return tok
}

// Save writes cfg to the user config file and persists token into the OS keyring
// (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg, token)
}

func SaveTo(path string, cfg AppConfig, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// ForgetToken removes the upload token from the keyring.
func ForgetToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setInt(&dst.Editor.DebounceMs, src.Editor.DebounceMs)
	setInt(&dst.Editor.SaveDebounceMs, src.Editor.SaveDebounceMs)
	setInt(&dst.Editor.MaxHistory, src.Editor.MaxHistory)
	setInt(&dst.Editor.MaxHistoryBytes, src.Editor.MaxHistoryBytes)
	setInt(&dst.Editor.Width, src.Editor.Width)
	setInt(&dst.Editor.Height, src.Editor.Height)
	setString(&dst.Editor.Background, src.Editor.Background)

	if src.Export.PreviewScale > 0 {
		dst.Export.PreviewScale = src.Export.PreviewScale
	}
	if src.Export.UploadScale > 0 {
		dst.Export.UploadScale = src.Export.UploadScale
	}
	setInt(&dst.Export.JPEGQuality, src.Export.JPEGQuality)

	setString(&dst.Upload.BaseURL, src.Upload.BaseURL)
	setInt(&dst.Upload.TimeoutMs, src.Upload.TimeoutMs)
	setString(&dst.Upload.KeyPrefix, src.Upload.KeyPrefix)

	setString(&dst.Storage.DataDir, src.Storage.DataDir)
	setInt(&dst.Storage.KeepSaves, src.Storage.KeepSaves)
	if src.Storage.PreviewsMaxBytes != 0 {
		dst.Storage.PreviewsMaxBytes = src.Storage.PreviewsMaxBytes
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)

	dst.Telemetry.OptIn = src.Telemetry.OptIn
	setString(&dst.Telemetry.EventsURL, src.Telemetry.EventsURL)
	setString(&dst.Telemetry.CrashURL, src.Telemetry.CrashURL)
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(key string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	envInt(EnvDebounceMs, &cfg.Editor.DebounceMs)
	envInt(EnvSaveDebounceMs, &cfg.Editor.SaveDebounceMs)
	envInt(EnvJPEGQuality, &cfg.Export.JPEGQuality)
	envString(EnvUploadURL, &cfg.Upload.BaseURL)
	envInt(EnvUploadTimeout, &cfg.Upload.TimeoutMs)
	envString(EnvUploadPrefix, &cfg.Upload.KeyPrefix)
	envString(EnvDataDir, &cfg.Storage.DataDir)
	if v := strings.TrimSpace(os.Getenv(telemetry.EnvOptIn)); v != "" {
		cfg.Telemetry.OptIn = parseBool(v)
	}
	envString(telemetry.EnvURL, &cfg.Telemetry.EventsURL)
	envString(telemetry.EnvCrashURL, &cfg.Telemetry.CrashURL)
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(applog.EnvLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(applog.EnvFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(applog.EnvSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	envString(applog.EnvFile, &cfg.Logging.File)
}

var envKeys = map[string]string{
	"editor.debounce_ms":      EnvDebounceMs,
	"editor.save_debounce_ms": EnvSaveDebounceMs,
	"export.jpeg_quality":     EnvJPEGQuality,
	"upload.base_url":         EnvUploadURL,
	"upload.timeout_ms":       EnvUploadTimeout,
	"upload.key_prefix":       EnvUploadPrefix,
	"storage.data_dir":        EnvDataDir,
	"telemetry.opt_in":        telemetry.EnvOptIn,
	"telemetry.events_url":    telemetry.EnvURL,
	"telemetry.crash_url":     telemetry.EnvCrashURL,
	"logging.level":           applog.EnvLevel,
	"logging.format":          applog.EnvFormat,
	"logging.source":          applog.EnvSource,
	"logging.file":            applog.EnvFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Validate reports values no component can work with.
func (c AppConfig) Validate() error {
	var problems []string
	if c.Editor.DebounceMs < 0 || c.Editor.SaveDebounceMs < 0 {
		problems = append(problems, "editor debounce must not be negative")
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		problems = append(problems, fmt.Sprintf("export.jpeg_quality %d out of range 1..100", c.Export.JPEGQuality))
	}
	if c.Export.UploadScale <= 0 || c.Export.PreviewScale <= 0 {
		problems = append(problems, "export scales must be positive")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Debounce is the history debounce.
func (e EditorConfig) Debounce() time.Duration { return ms(e.DebounceMs) }

// SaveDebounce is the save observer debounce.
func (e EditorConfig) SaveDebounce() time.Duration { return ms(e.SaveDebounceMs) }

// HistoryConfig maps the history caps.
func (e EditorConfig) HistoryConfig() history.Config {
	return history.Config{MaxEntries: e.MaxHistory, MaxBytes: e.MaxHistoryBytes}
}

// Timeout returns the upload timeout, falling back to the default when unset.
func (u UploadConfig) Timeout() time.Duration {
	if u.TimeoutMs <= 0 {
		return ms(Defaults().Upload.TimeoutMs)
	}
	return ms(u.TimeoutMs)
}

// LogOptions maps the logging section onto the logger options.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// TelemetryOptions maps the telemetry section onto the telemetry client config.
func (t TelemetryConfig) TelemetryOptions() telemetry.Config {
	c := telemetry.FromEnv()
	c.OptIn = t.OptIn
	c.EventsURL = t.EventsURL
	c.CrashURL = t.CrashURL
	return c
}
