// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the doclink daemon: create, start, stop.
package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	fsw "github.com/corey/doclink/internal/adapters/fsnotify"
	"github.com/corey/doclink/internal/adapters/samplefile"
	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/adapters/web"
	"github.com/corey/doclink/internal/config"
	"github.com/corey/doclink/internal/domain/linker"
	"github.com/corey/doclink/internal/domain/status"
	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// ErrUnknownGroup is returned by GroupList for a sample with no match group.
var ErrUnknownGroup = errors.New("no match group")

// App is the top-level container wiring all components together.
type App struct {
	ProjectRoot string
	Paths       *Paths
	Settings    *config.Config

	Store     Store
	Engine    *linker.Engine
	Handler   *BatchHandler
	Spool     *Spool       // nil when spool.enabled is false or OneShot
	Watcher   *fsw.Watcher // nil when Spool is nil
	Server    *socket.Server
	WebServer *web.Server // nil when http.enabled is false or OneShot

	log       *zap.SugaredLogger
	oneShot   bool
	storePath string

	mu        sync.Mutex // serializes engine access; every transport delivers on its own goroutine
	counters  status.Counters
	lastBatch *ports.BatchResult
	started   time.Time
	stopped   bool
}

var _ socket.AppQueries = (*App)(nil)

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	Settings    *config.Config // nil = config.Default()

	// Store overrides storage.driver. The App closes it on Stop.
	Store Store

	// OneShot builds only the engine and handler: no socket, HTTP server,
	// spool watcher or status file, and nothing is created under .doclink/.
	OneShot bool
}

// New creates an App with all dependencies wired. Does not start services.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, errors.New("project root required")
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	paths := NewPaths(cfg.ProjectRoot)
	paths.UseSpoolDir(cfg.ProjectRoot, settings.Spool.Dir)
	if !cfg.OneShot {
		if err := paths.EnsureDirs(); err != nil {
			return nil, errors.Wrap(err, "create state dirs")
		}
	}

	a := &App{
		ProjectRoot: cfg.ProjectRoot,
		Paths:       paths,
		Settings:    settings,
		log:         logger.ComponentLogger("app"),
		oneShot:     cfg.OneShot,
	}

	store := cfg.Store
	if store == nil {
		a.storePath = paths.StorePath(cfg.ProjectRoot, settings.Storage.Driver, settings.Storage.Path)
		s, err := OpenStore(settings.Storage.Driver, a.storePath)
		if err != nil {
			return nil, err
		}
		store = s
	}
	a.Store = store

	a.Engine = linker.NewEngine(store)
	n, err := a.Engine.Hydrate()
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "hydrate samples")
	}
	a.log.Infow("samples loaded",
		logger.FieldCount, n,
		logger.FieldDriver, settings.Storage.Driver)

	if settings.Samples.File != "" {
		file := settings.Samples.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(cfg.ProjectRoot, file)
		}
		if _, err := a.ImportSamples(file); err != nil {
			store.Close()
			return nil, errors.Wrap(err, "import samples.file")
		}
	}

	a.Handler = NewBatchHandler(a.Engine)
	if cfg.OneShot {
		return a, nil
	}

	a.Server = socket.NewServer(socket.SocketPath(cfg.ProjectRoot), a)
	if settings.HTTP.Enabled {
		a.WebServer = web.NewServer(a, paths.PortFile)
	}
	if settings.Spool.Enabled {
		a.Spool = NewSpool(paths, a.Ingest)
		w, err := fsw.NewWatcher()
		if err != nil {
			store.Close()
			return nil, errors.Wrap(err, "create watcher")
		}
		a.Watcher = w
	}
	return a, nil
}

// Start begins the daemon (socket server + HTTP server + spool watcher).
func (a *App) Start() error {
	if a.Server == nil {
		return errors.New("one-shot app cannot start services")
	}
	a.started = time.Now()
	if err := a.Server.Start(); err != nil {
		return errors.Wrap(err, "start server")
	}
	// HTTP API is non-fatal if the port is unavailable
	if a.WebServer != nil {
		httpPort := a.Settings.HTTP.Port
		if httpPort == 0 {
			httpPort = web.DefaultPort(a.ProjectRoot)
		}
		if err := a.WebServer.Start(httpPort); err != nil {
			a.log.Warnw("HTTP API unavailable", logger.FieldError, err)
		}
	}
	// Spool watcher is non-fatal if setup fails. Files that arrived
	// while the daemon was down are drained after the watch is in place.
	if a.Spool != nil {
		if err := a.Watcher.Watch(a.Spool.Dir(), a.Spool.OnFile); err != nil {
			a.log.Warnw("spool watcher unavailable", logger.FieldError, err)
		}
		if n, err := a.Spool.Drain(); err != nil {
			a.log.Warnw("spool drain failed", logger.FieldError, err)
		} else if n > 0 {
			a.log.Infow("spool drained", logger.FieldCount, n)
		}
	}
	a.mu.Lock()
	a.writeStatus()
	a.mu.Unlock()
	a.log.Infow("daemon started", logger.FieldAddress, a.Server.Addr())
	return nil
}

// Stop shuts down all services and closes the store. Safe to call twice.
func (a *App) Stop() error {
	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	if a.WebServer != nil {
		a.WebServer.Stop()
	}
	if a.Server != nil {
		a.Server.Stop()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil
	}
	a.stopped = true
	a.writeStatus()
	return a.Store.Close()
}

// Ingest processes a batch. Implements socket.AppQueries.
func (a *App) Ingest(records []ports.BatchRecord) ports.BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := a.Handler.Handle(records)
	a.counters.Batches++
	a.counters.RecordsOK += int64(res.Succeeded)
	a.counters.RecordsFailed += int64(res.Failed)
	a.lastBatch = &res
	a.writeStatus()
	return res
}

// AddSample registers a sample and reports whether it replaced an existing
// one. Implements socket.AppQueries.
func (a *App) AddSample(id string, description map[string]any) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, existed := a.Engine.Sample(id)
	if err := a.Engine.AddSample(id, description); err != nil {
		return false, err
	}
	a.writeStatus()
	return existed, nil
}

// ImportSamples reads a json, yaml or toml sample file and registers every
// sample in it. Returns the number imported.
func (a *App) ImportSamples(path string) (int, error) {
	recs, err := samplefile.ReadSamples(path)
	if err != nil {
		return 0, err
	}
	for i, rec := range recs {
		if _, err := a.AddSample(rec.ID, rec.Description); err != nil {
			return i, err
		}
	}
	a.log.Infow("samples imported", logger.FieldPath, path, logger.FieldCount, len(recs))
	return len(recs), nil
}

// SampleList returns the registry in registration order.
func (a *App) SampleList() []ports.SampleRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Engine.Samples()
}

// GroupList returns every match group, or only the one for sampleID when it
// is non-empty. An unknown sample id is ErrUnknownGroup.
func (a *App) GroupList(sampleID string) ([]ports.GroupRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sampleID == "" {
		return a.Engine.Groups(), nil
	}
	g, ok := a.Engine.Group(sampleID)
	if !ok {
		return nil, errors.Mark(errors.Newf("no match group for sample %q", sampleID), ErrUnknownGroup)
	}
	return []ports.GroupRecord{g}, nil
}

// StatsSnapshot returns engine and daemon counters.
func (a *App) StatsSnapshot() socket.StatsResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.Engine.Stats()
	res := socket.StatsResult{
		Samples:       st.Samples,
		Documents:     st.Documents,
		Groups:        st.Groups,
		Members:       st.Members,
		Batches:       a.counters.Batches,
		RecordsOK:     a.counters.RecordsOK,
		RecordsFailed: a.counters.RecordsFailed,
		StorageDriver: a.Settings.Storage.Driver,
		StoragePath:   a.storePath,
		ProjectRoot:   a.ProjectRoot,
	}
	if a.Spool != nil {
		res.SpoolFiles = a.Spool.Processed()
	}
	if a.Server != nil {
		res.SocketPath = a.Server.Addr()
	}
	if a.WebServer != nil {
		res.HTTPPort = a.WebServer.Port()
	}
	if !a.started.IsZero() {
		res.UptimeSeconds = int64(time.Since(a.started).Seconds())
	}
	return res
}

// writeStatus refreshes the status file. Caller holds a.mu.
func (a *App) writeStatus() {
	if a.oneShot {
		return
	}
	sd := status.Generate(a.Engine.Stats(), a.Engine.Groups(), a.counters, a.lastBatch)
	if err := status.WriteJSON(a.Paths.Status, sd); err != nil {
		a.log.Warnw("status write failed", logger.FieldPath, a.Paths.Status, logger.FieldError, err)
	}
}
