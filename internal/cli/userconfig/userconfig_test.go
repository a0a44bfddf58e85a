package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &UserConfig{}, cfg)
}

func TestSetAPIURL(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, SetAPIURL("https://api.example.com/api/"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", cfg.APIURL)
	assert.FileExists(t, filepath.Join(home, ".config", "vidflow", "config.json"))
}

func TestResolveAPIURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(APIURLEnv, "")

	url, err := ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, url)

	require.NoError(t, SetAPIURL("https://saved.example.com/api"))
	url, err = ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com/api", url)

	t.Setenv(APIURLEnv, "https://env.example.com/api/")
	url, err = ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", url)

	url, err = ResolveAPIURL("https://flag.example.com/api")
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.com/api", url)
}

func TestLoad_Corrupt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, ".config", "vidflow", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load()
	assert.ErrorContains(t, err, "failed to parse user config file")
}
