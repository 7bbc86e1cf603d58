package app_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apirelay/internal/app"
	"apirelay/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Server.Port = 8080
	cfg.HTTP.TimeoutSeconds = 5
	cfg.HTTP.UserAgent = "apirelay-test"
	cfg.Registry.StoreFile = filepath.Join(dir, "endpoints.json")
	cfg.Relay.DefaultType = "image"
	cfg.Relay.EnabledTypes = []string{"text", "image"}
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Probe.PerOriginRPS = 10
	cfg.Probe.PerOriginBurst = 1
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	a, err := app.New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Registry())
	assert.NotNil(t, a.Resolver())
	assert.NotNil(t, a.Prober())
	assert.NotNil(t, a.Server())
	assert.Equal(t, 0, a.Registry().Len())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0
	_, err := app.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := app.New(testConfig(t))
	require.NoError(t, err)
	a.Close()
	a.Close()
}
