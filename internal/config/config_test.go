package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_URL", "postgres://localhost/skills")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "gema:skills", cfg.EventsChannel)
	require.Equal(t, 10*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, 10, cfg.UploadMaxSizeMB)
	require.Equal(t, []string{"*"}, cfg.AllowOrigins)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_DATABASE_URL", "postgres://localhost/skills")
	t.Setenv("GEMA_CATALOG_CACHE_TTL", "30s")
	t.Setenv("GEMA_UPLOAD_MAX_SIZE_MB", "25")
	t.Setenv("GEMA_CORS_ALLOW_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("GEMA_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
	require.Equal(t, 25, cfg.UploadMaxSizeMB)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowOrigins)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")
	t.Setenv("GEMA_DATABASE_URL", "postgres://localhost/skills")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_CATALOG_CACHE_TTL", "soon")
	_, err = Load()
	require.Error(t, err)
}
