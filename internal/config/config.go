package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"habit-sync/internal/connectivity"
	"habit-sync/internal/logs"
	"habit-sync/internal/retry"
)

// Config is the resolved client configuration.
type Config struct {
	APIBaseURL string
	APIToken   string
	StorageDir string
	AdminBind  string
	LogLevel   logs.Level
	LogBuffer  int

	Retry    retry.Options
	CacheTTL time.Duration
	Probe    connectivity.ProbeConfig

	RefreshEnabled  bool
	RefreshInterval time.Duration

	SweepEnabled  bool
	SweepInterval time.Duration
}

const (
	defaultConfigPath      = "~/.config/habit-sync/config.toml"
	defaultStorageDir      = "~/.local/share/habit-sync"
	defaultAPIBaseURL      = "http://127.0.0.1:8080/api"
	defaultAdminBind       = "127.0.0.1:7490"
	defaultLogBuffer       = 500
	defaultCacheTTLMinutes = 5
	defaultRefreshInterval = time.Minute
	defaultSweepInterval   = time.Minute
	storeFileName          = "store.json"
)

type rawConfig struct {
	APIBaseURL string `toml:"api_base_url"`
	APIToken   string `toml:"api_token"`
	StorageDir string `toml:"storage_dir"`
	AdminBind  string `toml:"admin_bind"`
	LogLevel   string `toml:"log_level"`
	LogBuffer  int    `toml:"log_buffer"`

	Retry struct {
		Retries        int   `toml:"retries"`
		InitialDelayMs int64 `toml:"initial_delay_ms"`
		MaxDelayMs     int64 `toml:"max_delay_ms"`
	} `toml:"retry"`

	Cache struct {
		TTLMinutes int `toml:"ttl_minutes"`
	} `toml:"cache"`

	Probe struct {
		URL              string `toml:"url"`
		IntervalMs       int64  `toml:"interval_ms"`
		TimeoutMs        int64  `toml:"timeout_ms"`
		FailureThreshold int    `toml:"failure_threshold"`
		SuccessThreshold int    `toml:"success_threshold"`
	} `toml:"probe"`

	Refresh struct {
		Enabled    *bool `toml:"enabled"`
		IntervalMs int64 `toml:"interval_ms"`
	} `toml:"refresh"`

	Sweep struct {
		Enabled    *bool `toml:"enabled"`
		IntervalMs int64 `toml:"interval_ms"`
	} `toml:"sweep"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	def := connectivity.DefaultProbeConfig()
	def.URL = probeURL(defaultAPIBaseURL)
	return Config{
		APIBaseURL: defaultAPIBaseURL,
		StorageDir: mustExpand(defaultStorageDir),
		AdminBind:  defaultAdminBind,
		LogLevel:   logs.INFO,
		LogBuffer:  defaultLogBuffer,
		Retry: retry.Options{
			Retries:      retry.DefaultRetries,
			InitialDelay: retry.DefaultInitialDelay,
			MaxDelay:     retry.DefaultMaxDelay,
		},
		CacheTTL:        defaultCacheTTLMinutes * time.Minute,
		Probe:           def,
		RefreshEnabled:  false,
		RefreshInterval: defaultRefreshInterval,
		SweepEnabled:    true,
		SweepInterval:   defaultSweepInterval,
	}
}

// Load locates and parses the config file, falling back to defaults when it
// is missing. Fields left empty or zero keep their defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBaseURL); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	cfg.APIToken = strings.TrimSpace(raw.APIToken)
	if v := strings.TrimSpace(raw.StorageDir); v != "" {
		expanded, err := expandPath(v)
		if err != nil {
			return Config{}, fmt.Errorf("storage_dir: %w", err)
		}
		cfg.StorageDir = expanded
	}
	if v := strings.TrimSpace(raw.AdminBind); v != "" {
		cfg.AdminBind = v
	}
	if strings.TrimSpace(raw.LogLevel) != "" {
		cfg.LogLevel = logs.ParseLevel(raw.LogLevel)
	}
	if raw.LogBuffer > 0 {
		cfg.LogBuffer = raw.LogBuffer
	}

	if raw.Retry.Retries > 0 {
		cfg.Retry.Retries = raw.Retry.Retries
	}
	setMillis(&cfg.Retry.InitialDelay, raw.Retry.InitialDelayMs)
	setMillis(&cfg.Retry.MaxDelay, raw.Retry.MaxDelayMs)
	if cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		return Config{}, fmt.Errorf("retry.max_delay_ms must not be below retry.initial_delay_ms")
	}

	if raw.Cache.TTLMinutes > 0 {
		cfg.CacheTTL = time.Duration(raw.Cache.TTLMinutes) * time.Minute
	}

	cfg.Probe.URL = probeURL(cfg.APIBaseURL)
	if v := strings.TrimSpace(raw.Probe.URL); v != "" {
		cfg.Probe.URL = v
	}
	setMillis(&cfg.Probe.Interval, raw.Probe.IntervalMs)
	setMillis(&cfg.Probe.Timeout, raw.Probe.TimeoutMs)
	if raw.Probe.FailureThreshold > 0 {
		cfg.Probe.FailureThreshold = raw.Probe.FailureThreshold
	}
	if raw.Probe.SuccessThreshold > 0 {
		cfg.Probe.SuccessThreshold = raw.Probe.SuccessThreshold
	}

	if raw.Refresh.Enabled != nil {
		cfg.RefreshEnabled = *raw.Refresh.Enabled
	}
	setMillis(&cfg.RefreshInterval, raw.Refresh.IntervalMs)

	if raw.Sweep.Enabled != nil {
		cfg.SweepEnabled = *raw.Sweep.Enabled
	}
	setMillis(&cfg.SweepInterval, raw.Sweep.IntervalMs)

	return cfg, nil
}

// StorePath returns the file backing the persistent store.
func (c Config) StorePath() string {
	return filepath.Join(c.StorageDir, storeFileName)
}

func probeURL(base string) string {
	return strings.TrimRight(base, "/") + "/health"
}

func setMillis(dst *time.Duration, ms int64) {
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
