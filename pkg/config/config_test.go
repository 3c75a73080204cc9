package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kalac.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 64, cfg.Compiler.CacheSize)
	assert.False(t, cfg.Compiler.Overwrite)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[compiler]
cache_size = 8
overwrite = true
`)
	cfg := Defaults()
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, 8, cfg.Compiler.CacheSize)
	assert.True(t, cfg.Compiler.Overwrite)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[compiler]
overwrite = true
`)
	cfg := Defaults()
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, 64, cfg.Compiler.CacheSize)
	assert.True(t, cfg.Compiler.Overwrite)
}

func TestLoadRejectsNonPositiveCacheSize(t *testing.T) {
	path := writeConfig(t, `
[compiler]
cache_size = -1
`)
	cfg := Defaults()
	assert.Error(t, Load(path, &cfg))
}

func TestLoadMissingFile(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.toml"), &cfg))
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[compiler\ncache_size = 8")
	cfg := Defaults()
	assert.Error(t, Load(path, &cfg))
}
