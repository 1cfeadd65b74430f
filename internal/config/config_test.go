package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:3001", cfg.Server.Addr())
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.ML.Timeout)
	assert.Equal(t, 50, cfg.History.DefaultLimit)
	assert.Equal(t, AttachmentDriverNone, cfg.Attachments.Driver)
	assert.Zero(t, cfg.Retention.MaxAge)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SITRAS_SERVER__PORT", "8080")
	t.Setenv("SITRAS_STORE__DRIVER", "mongodb")
	t.Setenv("SITRAS_ML__TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreDriverMongoDB, cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.ML.Timeout)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		v := viper.New()
		setDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	require.NoError(t, validateConfig(base()))

	cfg := base()
	cfg.Store.Driver = "cassandra"
	assert.Error(t, validateConfig(cfg))

	cfg = base()
	cfg.Attachments.Driver = AttachmentDriverMinio
	cfg.Attachments.Minio.Bucket = ""
	assert.Error(t, validateConfig(cfg))

	cfg = base()
	cfg.History.MaxLimit = 10
	assert.Error(t, validateConfig(cfg))

	cfg = base()
	cfg.Retention.MaxAge = time.Hour
	cfg.Retention.Interval = 0
	assert.Error(t, validateConfig(cfg))
}
