package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-sync/internal/logs"
	"habit-sync/internal/retry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, defaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, defaultAdminBind, cfg.AdminBind)
	assert.Equal(t, logs.INFO, cfg.LogLevel)
	assert.Equal(t, retry.DefaultRetries, cfg.Retry.Retries)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, defaultAPIBaseURL+"/health", cfg.Probe.URL)
	assert.False(t, cfg.RefreshEnabled)
	assert.True(t, cfg.SweepEnabled)

	wantDir, err := expandPath(defaultStorageDir)
	require.NoError(t, err)
	assert.Equal(t, wantDir, cfg.StorageDir)
	assert.Equal(t, filepath.Join(wantDir, "store.json"), cfg.StorePath())
}

func TestLoad_ParsesAllSections(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
api_base_url = "  https://habits.example.com/api/  "
api_token = " abc "
storage_dir = "~/habits"
admin_bind = "0.0.0.0:9000"
log_level = "debug"
log_buffer = 42

[retry]
retries = 5
initial_delay_ms = 200
max_delay_ms = 800

[cache]
ttl_minutes = 15

[probe]
interval_ms = 1500
timeout_ms = 500
failure_threshold = 4
success_threshold = 2

[refresh]
enabled = true
interval_ms = 30000

[sweep]
enabled = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://habits.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "abc", cfg.APIToken)
	assert.True(t, strings.HasPrefix(cfg.StorageDir, home))
	assert.Equal(t, "0.0.0.0:9000", cfg.AdminBind)
	assert.Equal(t, logs.DEBUG, cfg.LogLevel)
	assert.Equal(t, 42, cfg.LogBuffer)

	assert.Equal(t, 5, cfg.Retry.Retries)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.Retry.MaxDelay)

	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)

	assert.Equal(t, "https://habits.example.com/api/health", cfg.Probe.URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Probe.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Probe.Timeout)
	assert.Equal(t, 4, cfg.Probe.FailureThreshold)
	assert.Equal(t, 2, cfg.Probe.SuccessThreshold)

	assert.True(t, cfg.RefreshEnabled)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.False(t, cfg.SweepEnabled)
	assert.Equal(t, defaultSweepInterval, cfg.SweepInterval)
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
api_base_url = "   "
admin_bind = ""
log_buffer = 0

[retry]
retries = -1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, defaultAdminBind, cfg.AdminBind)
	assert.Equal(t, defaultLogBuffer, cfg.LogBuffer)
	assert.Equal(t, retry.DefaultRetries, cfg.Retry.Retries)
}

func TestLoad_ExplicitProbeURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(writeConfig(t, `
[probe]
url = "http://status.local/ping"
`))
	require.NoError(t, err)
	assert.Equal(t, "http://status.local/ping", cfg.Probe.URL)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid toml", "api_base_url = ", "parse config"},
		{"max below initial", "[retry]\ninitial_delay_ms = 5000\nmax_delay_ms = 100\n", "max_delay_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/x/y")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y"), got)

	_, err = expandPath("   ")
	assert.Error(t, err)
}
