package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	p := NewPaths("/project")
	assert.Equal(t, filepath.Join("/project", ".doclink"), p.Root)
	assert.Equal(t, filepath.Join("/project", ".doclink", "doclink.db"), p.DB)
	assert.Equal(t, filepath.Join("/project", ".doclink", "doclink.sqlite"), p.SQLiteDB)
	assert.Equal(t, filepath.Join("/project", ".doclink", "config.toml"), p.Config)
	assert.Equal(t, filepath.Join("/project", ".doclink", "status.json"), p.Status)
	assert.Equal(t, filepath.Join("/project", ".doclink", "log"), p.LogDir)
	assert.Equal(t, filepath.Join("/project", ".doclink", "log", "daemon.log"), p.DaemonLog)
	assert.Equal(t, filepath.Join("/project", ".doclink", "run"), p.RunDir)
	assert.Equal(t, filepath.Join("/project", ".doclink", "run", "daemon.pid"), p.PIDFile)
	assert.Equal(t, filepath.Join("/project", ".doclink", "run", "http.port"), p.PortFile)
	assert.Equal(t, filepath.Join("/project", ".doclink", "spool"), p.SpoolDir)
	assert.Equal(t, filepath.Join("/project", ".doclink", "spool", "done"), p.SpoolDone)
	assert.Equal(t, filepath.Join("/project", ".doclink", "spool", "failed"), p.SpoolFailed)
}

func TestUseSpoolDir(t *testing.T) {
	p := NewPaths("/project")
	p.UseSpoolDir("/project", "")
	assert.Equal(t, filepath.Join("/project", ".doclink", "spool"), p.SpoolDir, "empty keeps default")

	p.UseSpoolDir("/project", "inbox")
	assert.Equal(t, filepath.Join("/project", "inbox"), p.SpoolDir)
	assert.Equal(t, filepath.Join("/project", "inbox", "done"), p.SpoolDone)
	assert.Equal(t, filepath.Join("/project", "inbox", "failed"), p.SpoolFailed)

	p.UseSpoolDir("/project", "/var/spool/doclink")
	assert.Equal(t, "/var/spool/doclink", p.SpoolDir)
}

func TestStorePath(t *testing.T) {
	p := NewPaths("/project")
	assert.Equal(t, p.DB, p.StorePath("/project", "bbolt", ""))
	assert.Equal(t, p.SQLiteDB, p.StorePath("/project", "sqlite", ""))
	assert.Equal(t, "", p.StorePath("/project", "memory", "ignored.db"))
	assert.Equal(t, filepath.Join("/project", "data", "x.db"), p.StorePath("/project", "bbolt", "data/x.db"))
	assert.Equal(t, "/abs/x.db", p.StorePath("/project", "sqlite", "/abs/x.db"))
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	p := NewPaths(dir)

	// First call creates directories.
	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Root, p.LogDir, p.RunDir, p.SpoolDir, p.SpoolDone, p.SpoolFailed} {
		info, err := os.Stat(d)
		require.NoError(t, err, "dir %s should exist", d)
		assert.True(t, info.IsDir())
	}

	// Second call is idempotent.
	require.NoError(t, p.EnsureDirs())
}

func TestCleanEphemeral(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, p.EnsureDirs())
	require.NoError(t, os.WriteFile(p.PIDFile, []byte("123"), 0644))
	require.NoError(t, os.WriteFile(p.PortFile, []byte("19000"), 0644))

	p.CleanEphemeral()

	_, err := os.Stat(p.PIDFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p.PortFile)
	assert.True(t, os.IsNotExist(err))

	// Missing files are fine.
	p.CleanEphemeral()
}
