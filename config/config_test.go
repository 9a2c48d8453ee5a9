package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "intentmesh.events", cfg.Notify.Queue)
}

func TestLoadFile(t *testing.T) {
	doc := `
server:
  addr: ":9090"
logging:
  level: debug
  format: text
registry_file: ./intents.yaml
directory_file: ./agents.yaml
watch: true
classifier:
  threshold: 0.6
  rules:
    - intent: check_balance
      keywords: [balance, invoice]
      weight: 2
store:
  backend: sqlite
  sqlite_path: ./mesh.db
dispatch:
  history_window: 10
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 0.6, cfg.Classifier.Threshold)
	require.Len(t, cfg.Classifier.Rules, 1)
	assert.Equal(t, 2.0, cfg.Classifier.Rules[0].Weight)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 10, cfg.Dispatch.HistoryWindow)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INTENTMESH_ADDR", ":7070")
	t.Setenv("INTENTMESH_STORE_BACKEND", "redis")
	t.Setenv("INTENTMESH_REDIS_ADDR", "localhost:6379")
	t.Setenv("INTENTMESH_REDIS_DB", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 3, cfg.Store.RedisDB)
}

func TestValidation(t *testing.T) {
	write := func(doc string) string {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
		return path
	}

	_, err := Load(write("store:\n  backend: cassandra\n"))
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = Load(write("store:\n  backend: sqlite\n"))
	assert.ErrorContains(t, err, "requires sqlite_path")

	_, err = Load(write("logging:\n  format: xml\n"))
	assert.ErrorContains(t, err, "unknown log format")
}
