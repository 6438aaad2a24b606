package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	t.Setenv("TIMEZONE", "UTC")
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"SESSION_SECRET": ""})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "http://localhost:5000/api", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.AlertCooldown)
	assert.Equal(t, time.Duration(0), cfg.PollInterval)
	assert.Equal(t, DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.EphemeralSecret)
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"API_BASE_URL":    "https://sensor.example.com/api/",
		"ALERT_COOLDOWN":  "45",
		"POLL_INTERVAL":   "1m",
		"REDIS_DB":        "3",
		"HUMIDITY_MIN":    "55.5",
		"SESSION_SECRET":  "s3cret",
		"CORS_ORIGINS":    "http://a.test, http://b.test",
		"TEMPERATURE_MAX": "32",
	})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://sensor.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, 45*time.Second, cfg.AlertCooldown)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 55.5, cfg.Thresholds.HumidityMin)
	assert.Equal(t, 32.0, cfg.Thresholds.TemperatureMax)
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.False(t, cfg.EphemeralSecret)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_EnvFile(t *testing.T) {
	setEnv(t, nil)
	os.Unsetenv("MQTT_ADDR")
	t.Cleanup(func() { os.Unsetenv("MQTT_ADDR") })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MQTT_ADDR=:1883\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1883", cfg.MQTTAddr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"relative base url": {"API_BASE_URL": "/api"},
		"negative cooldown": {"ALERT_COOLDOWN": "-5s"},
		"inverted humidity": {"HUMIDITY_MIN": "80"},
		"unknown timezone":  {"TIMEZONE": "Mars/Olympus"},
		"zero session ttl":  {"SESSION_TTL": "0s"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			setEnv(t, kv)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
