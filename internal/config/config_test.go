package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, 480*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes())
	assert.Equal(t, "crm_session", cfg.Auth.CookieName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("POSTGRES_MAX_CONNS", "25")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("STORAGE_S3_BUCKET", "tickets")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, int32(25), cfg.Postgres.MaxConns)
	assert.False(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, StorageDriverS3, cfg.Storage.Driver)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "first")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("storage driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "ftp")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "s3")
		t.Setenv("STORAGE_S3_BUCKET", "")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestGetEnvAsInt_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
	t.Setenv("SOME_INT", "12")
	assert.Equal(t, 12, getEnvAsInt("SOME_INT", 7))
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}
