package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := collectConfig(Defaults())

	assert.Equal(t, "127.0.0.1", cfg.Loopback)
	assert.Contains(t, cfg.HostVariables, "MYSQL_HOST")
	assert.Len(t, cfg.Services, 8)
	assert.Len(t, cfg.Artifacts, 3)
	assert.Equal(t, filepath.Join(cfg.StateDir, "setup.done"), cfg.MarkerPath())

	infinity, err := cfg.Service("infinity")
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, infinity.ReadinessTimeout)

	_, err = cfg.Service("elasticsearch")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
state_dir: `+filepath.Join(dir, "state")+`
readiness_interval: 250ms
variables:
  MYSQL_PASSWORD: secret
log:
  level: debug
  dir: `+filepath.Join(dir, "logs")+`
metrics:
  textfile: `+filepath.Join(dir, "stack.prom")+`
services:
  - name: redis
    rank: 0
    running:
      type: redis
      host: ${REDIS_HOST:-redis}
    start:
      command: redis-server
      args: ["--port", "6379"]
      env:
        REDIS_ARGS: --save ""
    readiness_timeout: 15s
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "state", "setup.done"), cfg.MarkerPath())
	assert.Equal(t, 250*time.Millisecond, cfg.ReadinessInterval)
	assert.Equal(t, "secret", cfg.Variables["MYSQL_PASSWORD"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "stack.prom"), cfg.Metrics.Textfile)

	require.Len(t, cfg.Services, 1, "a services list replaces the defaults")
	redis := cfg.Services[0]
	assert.Equal(t, "redis", redis.Name)
	assert.Nil(t, redis.Init)
	assert.Equal(t, "${REDIS_HOST:-redis}", redis.Running.Host)
	assert.Equal(t, []string{"--port", "6379"}, redis.Start.Args)
	assert.Equal(t, map[string]string{"REDIS_ARGS": `--save ""`}, redis.Start.Env, "env names keep their case")
	assert.Equal(t, 15*time.Second, redis.ReadinessTimeout)

	assert.Len(t, cfg.Artifacts, 3, "keys absent from the file keep their defaults")
	assert.Equal(t, "127.0.0.1", cfg.Loopback)
}

func TestLoadConfig_ExplicitPathMustExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
