package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIURL)
	assert.Equal(t, "bookineo-session.db", cfg.SessionDB)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BOOKINEO_API_URL", "https://api.bookineo.example/api/v1")
	t.Setenv("BOOKINEO_SESSION_DB", "/tmp/s.db")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("REFRESH_INTERVAL", "1m")
	t.Setenv("BOOKINEO_METRICS_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.bookineo.example/api/v1", cfg.APIURL)
	assert.Equal(t, "/tmp/s.db", cfg.SessionDB)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoad_RejectsRelativeAPIURL(t *testing.T) {
	t.Setenv("BOOKINEO_API_URL", "/api/v1")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKINEO_API_URL")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{APIURL: "ftp://x", HTTPTimeout: 0, RefreshInterval: -1, BootstrapWait: time.Second}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKINEO_API_URL")
	assert.Contains(t, err.Error(), "BOOKINEO_SESSION_DB")
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
	assert.Contains(t, err.Error(), "REFRESH_INTERVAL")
}
