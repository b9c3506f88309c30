package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3001", c.HTTP.Addr)
	assert.Equal(t, 5*time.Second, c.HTTP.ShutdownTimeout)
	assert.Equal(t, StorageMemory, c.Storage.Driver)
	assert.Equal(t, 18, c.Validation.ProductNo.Max)
	assert.Equal(t, 20, c.Catalog.PageSize)
	assert.Equal(t, 8, c.Backup.Keep)
	assert.False(t, c.Backup.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weighd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":8080"
storage:
  driver: sqlite
  sqlite_path: /tmp/w.db
validation:
  product_no:
    min: 8
    max: 8
backup:
  enabled: true
  driver: s3
  s3:
    bucket: weighd
    path_style: true
listeners:
  tcp_addrs: [":5000", ":5001"]
`), 0o600))
	t.Setenv("APP_HTTP_ADDR", ":9090")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTP.Addr, "env wins over the file")
	assert.Equal(t, StorageSQLite, c.Storage.Driver)
	assert.Equal(t, "/tmp/w.db", c.Storage.SQLitePath)
	assert.Equal(t, 8, c.Validation.ProductNo.Min)
	assert.Equal(t, 18, c.Validation.MaterialNo.Max)
	assert.Equal(t, "weighd", c.Backup.S3.Bucket)
	assert.True(t, c.Backup.S3.PathStyle)
	assert.Equal(t, []string{":5000", ":5001"}, c.Listeners.TCPAddrs)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	pg := c
	pg.Storage.Driver = StoragePostgres
	require.Error(t, pg.Validate())
	pg.Postgres.DSN = "postgres://localhost/weighd"
	require.NoError(t, pg.Validate())

	bad := c
	bad.Storage.Driver = "mongo"
	require.Error(t, bad.Validate())

	s3 := c
	s3.Backup.Enabled = true
	s3.Backup.Driver = "s3"
	require.Error(t, s3.Validate())
}

func TestLocation(t *testing.T) {
	var c Config
	assert.Equal(t, time.Local, c.Location())
	c.App.Timezone = "UTC"
	assert.Equal(t, time.UTC, c.Location())
	c.App.Timezone = "Nowhere/City"
	assert.Equal(t, time.Local, c.Location())
}

func TestValidateBotNeedsToken(t *testing.T) {
	var c Config
	c.Storage.Driver = StorageMemory
	c.Telegram.Bot = true
	require.Error(t, c.Validate())

	c.Telegram.Token = "123:abc"
	require.NoError(t, c.Validate())
}
