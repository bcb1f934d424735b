package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"store": {"path": "/tmp/kv", "sync": true},
		"tree": {"verify_writes": true},
		"log": {"level": "debug"}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/kv", cfg.Store.Path)
	require.True(t, cfg.Store.Sync)
	require.True(t, cfg.Tree.VerifyWrites)
	require.Equal(t, 256, cfg.Tree.CacheSize)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, New().Shell, cfg.Shell)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, New(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0644))
	_, err = Load(bad)
	require.Error(t, err)
}
