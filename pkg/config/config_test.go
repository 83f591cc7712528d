package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Engine.ResultLimit)
	assert.Equal(t, 5*time.Minute, cfg.Engine.QueryTimeout)
	assert.Equal(t, "compressed", cfg.Engine.SizeMode)
	assert.Equal(t, 10, cfg.Engine.MaxLivePaths)
	assert.Equal(t, "gzip", cfg.Engine.ExportCompression)
	assert.Empty(t, cfg.Engine.BusinessPrefixes)
	assert.Equal(t, 2, cfg.Snapshots.MaxLoaded)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  result_limit: 50
  query_timeout: 30s
  reachable_excludes:
    - java.lang.ref.Reference.referent
    - java.lang.ref.Reference.queue
  size_mode: uncompressed
  parallelism: 8
  business_prefixes: [com.acme.]
  export_compression: zstd
snapshots:
  cache_dir: /tmp/snapshots
  max_loaded: 4
database:
  type: postgres
  host: db.example.com
  port: 5433
  database: heapql
  user: admin
  password: secret
server:
  port: 8080
`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Engine.ResultLimit)
	assert.Equal(t, 30*time.Second, cfg.Engine.QueryTimeout)
	assert.Equal(t, []string{"java.lang.ref.Reference.referent", "java.lang.ref.Reference.queue"}, cfg.Engine.ReachableExcludes)
	assert.Equal(t, "uncompressed", cfg.Engine.SizeMode)
	assert.Equal(t, 8, cfg.Engine.Parallelism)
	assert.Equal(t, []string{"com.acme."}, cfg.Engine.BusinessPrefixes)
	assert.Equal(t, "zstd", cfg.Engine.ExportCompression)
	assert.Equal(t, "/tmp/snapshots", cfg.Snapshots.CacheDir)
	assert.Equal(t, 4, cfg.Snapshots.MaxLoaded)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "heapql", cfg.Database.Database)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HEAPQL_ENGINE_RESULT_LIMIT", "25")
	t.Setenv("HEAPQL_SERVER_PORT", "9090")

	cfg, err := Load(writeConfig(t, "engine:\n  result_limit: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Engine.ResultLimit)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	_, err := Load(writeConfig(t, "database:\n  type: oracle\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`))
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Engine.ResultLimit)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader("yaml", []byte(`
database:
  type: mysql
  host: mysql.local
`))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty host", func(c *Config) { c.Database.Type, c.Database.Host = "postgres", "" }, "database host is required"},
		{"sqlite without host", func(c *Config) { c.Database.Host = "" }, ""},
		{"storage type", func(c *Config) { c.Storage.Type = "s3" }, "unsupported storage type"},
		{"size mode", func(c *Config) { c.Engine.SizeMode = "tiny" }, "unsupported size mode"},
		{"export compression", func(c *Config) { c.Engine.ExportCompression = "lz4" }, "unsupported export compression"},
		{"result limit", func(c *Config) { c.Engine.ResultLimit = 0 }, "result limit must be at least 1"},
		{"parallelism", func(c *Config) { c.Engine.Parallelism = 0 }, "parallelism must be at least 1"},
		{"max loaded", func(c *Config) { c.Snapshots.MaxLoaded = 0 }, "max loaded snapshots must be at least 1"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnsureCacheDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots", "cache")
	cfg := &Config{Snapshots: SnapshotsConfig{CacheDir: dir}}

	require.NoError(t, cfg.EnsureCacheDir())
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}
