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

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "mastering_performant_code", cfg.Package.Name)
	assert.True(t, cfg.Package.FetchLocal)
	assert.Equal(t, "remote", cfg.Worker.Runtime)
	assert.Equal(t, 60*time.Second, cfg.Worker.Timeout)
	assert.Equal(t, 30000, cfg.Execution.TimeoutMs)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WORKER_RUNTIME", "goja")
	t.Setenv("EXEC_TIMEOUT_MS", "5000")
	t.Setenv("PACKAGE_FETCH_LOCAL", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "goja", cfg.Worker.Runtime)
	assert.Equal(t, 5000, cfg.Execution.TimeoutMs)
	assert.False(t, cfg.Package.FetchLocal)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("EXEC_TIMEOUT_MS", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestDefault_MatchesEnvDefaults(t *testing.T) {
	loaded, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, loaded.Server, def.Server)
	assert.Equal(t, loaded.Package, def.Package)
	assert.Equal(t, loaded.Worker, def.Worker)
	assert.Equal(t, loaded.Execution, def.Execution)
}
