package config

import (
	"encoding/base64"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://school.example.com/api/")
	t.Setenv("SESSION_KEY", validKey())

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8787, cfg.App.Port)
	assert.Equal(t, "https://school.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Polling.Interval)
	assert.Equal(t, 2, cfg.Polling.Retries)
	assert.Equal(t, time.Second, cfg.Tracker.TickInterval)
	assert.Nil(t, cfg.Device.Latitude)
	assert.Len(t, cfg.Session.Key, 32)
	assert.Equal(t, "07:00", cfg.MockAPI.CheckInStart)
	assert.Empty(t, cfg.App.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8080")
	t.Setenv("SESSION_KEY", validKey())
	t.Setenv("POLL_INTERVAL", "1m")
	t.Setenv("DEVICE_LATITUDE", "12.97")
	t.Setenv("DEVICE_LONGITUDE", "77.59")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000,http://kiosk.local")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, time.Minute, cfg.Polling.Interval)
	require.NotNil(t, cfg.Device.Latitude)
	assert.Equal(t, 12.97, *cfg.Device.Latitude)
	assert.Equal(t, []string{"http://localhost:3000", "http://kiosk.local"}, cfg.App.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port", key: "APP_PORT", value: "eighty"},
		{name: "poll interval", key: "POLL_INTERVAL", value: "soon"},
		{name: "latitude", key: "DEVICE_LATITUDE", value: "north"},
		{name: "short session key", key: "SESSION_KEY", value: base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "session key not base64", key: "SESSION_KEY", value: "%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	lat := 1.0
	base := func() *Config {
		return &Config{
			API:     APIConfig{BaseURL: "http://localhost:8080"},
			Session: SessionConfig{Key: make([]byte, 32)},
			Polling: PollingConfig{Interval: time.Second},
			Tracker: TrackerConfig{TickInterval: time.Second},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.API.BaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "API_BASE_URL")

	cfg = base()
	cfg.Session.Key = nil
	assert.ErrorContains(t, cfg.Validate(), "SESSION_KEY")

	cfg = base()
	cfg.Polling.Retries = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Device.Latitude = &lat
	assert.ErrorContains(t, cfg.Validate(), "together")
}
