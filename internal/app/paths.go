package app

import (
	"os"
	"path/filepath"

	"github.com/corey/doclink/internal/config"
	"github.com/corey/doclink/internal/domain/status"
)

// StateDir is the per-project state directory name.
const StateDir = ".doclink"

// Paths holds all resolved filesystem paths for the .doclink/ project directory.
type Paths struct {
	Root     string // .doclink/
	DB       string // .doclink/doclink.db (bbolt)
	SQLiteDB string // .doclink/doclink.sqlite
	Config   string // .doclink/config.toml
	Status   string // .doclink/status.json

	LogDir    string // .doclink/log/
	DaemonLog string // .doclink/log/daemon.log

	RunDir   string // .doclink/run/
	PIDFile  string // .doclink/run/daemon.pid
	PortFile string // .doclink/run/http.port

	SpoolDir    string // .doclink/spool/
	SpoolDone   string // .doclink/spool/done/
	SpoolFailed string // .doclink/spool/failed/
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, StateDir)
	return &Paths{
		Root:     root,
		DB:       filepath.Join(root, "doclink.db"),
		SQLiteDB: filepath.Join(root, "doclink.sqlite"),
		Config:   config.ProjectFile(projectRoot),
		Status:   filepath.Join(root, status.StatusFile),

		LogDir:    filepath.Join(root, "log"),
		DaemonLog: filepath.Join(root, "log", "daemon.log"),

		RunDir:   filepath.Join(root, "run"),
		PIDFile:  filepath.Join(root, "run", "daemon.pid"),
		PortFile: filepath.Join(root, "run", "http.port"),

		SpoolDir:    filepath.Join(root, "spool"),
		SpoolDone:   filepath.Join(root, "spool", "done"),
		SpoolFailed: filepath.Join(root, "spool", "failed"),
	}
}

// UseSpoolDir points the spool paths at dir (from spool.dir). Relative dirs
// resolve against the project root.
func (p *Paths) UseSpoolDir(projectRoot, dir string) {
	if dir == "" {
		return
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}
	p.SpoolDir = dir
	p.SpoolDone = filepath.Join(dir, "done")
	p.SpoolFailed = filepath.Join(dir, "failed")
}

// StorePath returns the database file for driver, honouring an explicit
// storage.path. Relative paths resolve against the project root. The memory
// driver has no file.
func (p *Paths) StorePath(projectRoot, driver, explicit string) string {
	if driver == config.DriverMemory {
		return ""
	}
	if explicit != "" {
		if filepath.IsAbs(explicit) {
			return explicit
		}
		return filepath.Join(projectRoot, explicit)
	}
	if driver == config.DriverSQLite {
		return p.SQLiteDB
	}
	return p.DB
}

// EnsureDirs creates all subdirectories under .doclink/. Idempotent.
func (p *Paths) EnsureDirs() error {
	dirs := []string{
		p.Root,
		p.LogDir,
		p.RunDir,
		p.SpoolDir,
		p.SpoolDone,
		p.SpoolFailed,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanEphemeral removes ephemeral runtime files (PID file and port file).
// Called on clean daemon shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.PortFile)
}
