package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // keep a developer .env out of the test
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vidflow.sqlite", cfg.Database.URL)
	assert.Equal(t, "8000", cfg.HTTP.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "media", cfg.Media.Dir)
	assert.Empty(t, cfg.Media.SeedFile)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "/tmp/x.sqlite")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("ACCESS_TOKEN_TTL", "60")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")
	t.Setenv("PUBLIC_URL", "https://vidflow.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.sqlite", cfg.Database.URL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "https://vidflow.example.com", cfg.HTTP.PublicURL)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("ACCESS_TOKEN_TTL", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "ACCESS_TOKEN_TTL")
	})
}
