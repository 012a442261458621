package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjectConfig(t *testing.T, root, content string) {
	t.Helper()
	path := ProjectFile(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Root: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DriverBBolt, cfg.Storage.Driver)
	assert.Empty(t, cfg.Storage.Path)
	assert.True(t, cfg.Spool.Enabled)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, 0, cfg.HTTP.Port)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Send.BatchSize)
	assert.Equal(t, 0.0, cfg.Send.Rate)

	assert.Equal(t, cfg, Default())
}

func TestLoad_ProjectFile(t *testing.T) {
	root := t.TempDir()
	writeProjectConfig(t, root, `
[storage]
driver = "sqlite"
path = "data/links.db"

[http]
enabled = false
port = 19500

[send]
rate = 25.5
`)

	cfg, err := Load(LoadOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "data/links.db", cfg.Storage.Path)
	assert.False(t, cfg.HTTP.Enabled)
	assert.Equal(t, 19500, cfg.HTTP.Port)
	assert.Equal(t, 25.5, cfg.Send.Rate)
	assert.Equal(t, 10, cfg.Send.BatchSize, "unset keys keep defaults")
}

func TestLoad_ExplicitFileOverridesProject(t *testing.T) {
	root := t.TempDir()
	writeProjectConfig(t, root, `
[storage]
driver = "sqlite"

[log]
level = "debug"
`)
	explicit := filepath.Join(t.TempDir(), "override.toml")
	require.NoError(t, os.WriteFile(explicit, []byte(`
[storage]
driver = "memory"
`), 0644))

	cfg, err := Load(LoadOptions{Root: root, File: explicit})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Log.Level, "project keys not in the explicit file survive")
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	root := t.TempDir()
	writeProjectConfig(t, root, `
[storage]
driver = "sqlite"
`)
	t.Setenv("DOCLINK_STORAGE_DRIVER", "memory")
	t.Setenv("DOCLINK_SEND_BATCH_SIZE", "3")
	t.Setenv("DOCLINK_SPOOL_ENABLED", "false")

	cfg, err := Load(LoadOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Send.BatchSize)
	assert.False(t, cfg.Spool.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.toml")})
	assert.ErrorContains(t, err, "not found")
}

func TestLoad_MalformedFile(t *testing.T) {
	root := t.TempDir()
	writeProjectConfig(t, root, "[storage\ndriver = ")
	_, err := Load(LoadOptions{Root: root})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(*Config) {}, ""},
		{"bad driver", func(c *Config) { c.Storage.Driver = "dynamo" }, "storage.driver"},
		{"negative port", func(c *Config) { c.HTTP.Port = -1 }, "http.port"},
		{"port too big", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative rate", func(c *Config) { c.Send.Rate = -1 }, "send.rate"},
		{"zero batch", func(c *Config) { c.Send.BatchSize = 0 }, "send.batch_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWrite_RoundTripsThroughLoad(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Storage.Driver = DriverSQLite
	cfg.HTTP.Port = 19123
	cfg.Samples.File = "samples.yaml"
	cfg.Send.Rate = 5

	require.NoError(t, Write(ProjectFile(root), cfg))

	data, err := os.ReadFile(ProjectFile(root))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# doclink configuration.")
	assert.Contains(t, string(data), "[storage]")

	loaded, err := Load(LoadOptions{Root: root})
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = os.Stat(ProjectFile(root) + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}
