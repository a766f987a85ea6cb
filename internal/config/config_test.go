package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.ListenPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StrategyManaged, cfg.RolloutStrategy)
	assert.Equal(t, 5*time.Minute, cfg.FetchThrottleWindow)
	assert.Equal(t, time.Minute, cfg.DetectInterval)
	assert.Equal(t, "https://servicemanagement.googleapis.com", cfg.ManagementBaseURL)
	assert.Empty(t, cfg.ServiceName)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROLLOUTD_SERVICE_NAME", "bookstore.test.appspot.com")
	t.Setenv("ROLLOUTD_ROLLOUT_STRATEGY", "fixed")
	t.Setenv("ROLLOUTD_FETCH_THROTTLE_WINDOW", "90s")
	t.Setenv("ROLLOUTD_LISTEN_PORT", ":9999")

	cfg := Load()

	assert.Equal(t, "bookstore.test.appspot.com", cfg.ServiceName)
	assert.Equal(t, StrategyFixed, cfg.RolloutStrategy)
	assert.Equal(t, 90*time.Second, cfg.FetchThrottleWindow)
	assert.Equal(t, ":9999", cfg.ListenPort)
}

func TestLoadServerConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
service_name: service_name_from_server_config
rollout_strategy: managed
service_management_config:
  fetch_throttle_window_s: 300
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ROLLOUTD_SERVER_CONFIG", path)

	cfg := Load()

	assert.Equal(t, "service_name_from_server_config", cfg.ServiceName)
	assert.Equal(t, StrategyManaged, cfg.RolloutStrategy)
	assert.Equal(t, 300*time.Second, cfg.FetchThrottleWindow)
}

func TestEnvOverridesServerConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
service_name: service_name_from_server_config
service_management_config:
  fetch_throttle_window_s: 300
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ROLLOUTD_SERVER_CONFIG", path)
	t.Setenv("ROLLOUTD_SERVICE_NAME", "service_name_from_env")
	t.Setenv("ROLLOUTD_FETCH_THROTTLE_WINDOW", "60s")

	cfg := Load()

	assert.Equal(t, "service_name_from_env", cfg.ServiceName)
	assert.Equal(t, time.Minute, cfg.FetchThrottleWindow)
}

func TestLoadMissingServerConfigFilePanics(t *testing.T) {
	t.Setenv("ROLLOUTD_SERVER_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Panics(t, func() { Load() })
}

func TestLoadMalformedServerConfigFilePanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_name: [unclosed"), 0o600))
	t.Setenv("ROLLOUTD_SERVER_CONFIG", path)
	assert.Panics(t, func() { Load() })
}

func TestLoadUnknownStrategyPanics(t *testing.T) {
	t.Setenv("ROLLOUTD_ROLLOUT_STRATEGY", "canary")
	assert.Panics(t, func() { Load() })
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{name: "unset uses default", value: "", def: time.Second, expected: time.Second},
		{name: "valid duration", value: "2m", def: time.Second, expected: 2 * time.Minute},
		{name: "invalid falls back", value: "soon", def: time.Second, expected: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_DURATION", tt.value)
			}
			assert.Equal(t, tt.expected, mustDuration("TEST_DURATION", tt.def))
		})
	}
}
