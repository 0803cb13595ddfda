// Package app ties a browser session, the collector and the archive stores
// together into the operations the commands expose.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/ibeckermayer/xarchive/internal/archive"
	"github.com/ibeckermayer/xarchive/internal/config"
	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/scraper"
	"github.com/ibeckermayer/xarchive/internal/store"
	"github.com/ibeckermayer/xarchive/internal/types"
)

// SessionOpener provides the document a run traverses. The returned func
// releases it.
type SessionOpener func(ctx context.Context) (scraper.Session, func(), error)

// ErrNoArchives is returned when the archive directory holds no final archive.
var ErrNoArchives = errors.New("no archives found")

// App holds the application state.
type App struct {
	mu          sync.RWMutex
	openSession SessionOpener  // immutable after creation
	catalog     *store.Catalog // optional, immutable after creation
	configPath  string
	extra       []scraper.Option

	// Mutable fields - use getSnapshot() for concurrent access.
	config *config.Config
	files  *store.FileStore
}

// snapshot holds fields that may be replaced by ReloadConfig.
type snapshot struct {
	config *config.Config
	files  *store.FileStore
}

func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config: a.config,
		files:  a.files,
	}
}

// Option configures an App.
type Option func(*App)

// WithCatalog records every run and its posts in c.
func WithCatalog(c *store.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithConfigPath sets the file ReloadConfig reads.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithCollectorOptions passes opts to every collector the app creates,
// after the timing derived from config.
func WithCollectorOptions(opts ...scraper.Option) Option {
	return func(a *App) { a.extra = append(a.extra, opts...) }
}

// New creates a new App instance.
func New(cfg *config.Config, open SessionOpener, opts ...Option) *App {
	a := &App{
		openSession: open,
		config:      cfg,
		files:       store.NewFileStore(cfg.Scraping.ArchiveDir),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Files returns the current archive store.
func (a *App) Files() *store.FileStore {
	return a.getSnapshot().files
}

// Outcome summarizes a finished run.
type Outcome struct {
	Run   store.Run
	Posts []types.Post
}

// Archive performs one collection run and persists its result. The final
// archive is written whenever the run produced posts, including canceled
// runs. Catalog failures are logged and never fail the run.
func (a *App) Archive(ctx context.Context, run types.RunConfig, reporter scraper.Reporter) (*Outcome, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}

	s := a.getSnapshot()
	log := logger.With("target", run.Target, "mode", run.Mode)

	session, release, err := a.openSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer release()

	opts := []scraper.Option{scraper.WithTiming(s.config.Scraping.Timing())}
	if reporter != nil {
		opts = append(opts, scraper.WithReporter(reporter))
	}
	opts = append(opts, a.extra...)

	out := &Outcome{Run: store.Run{
		Target:    run.Target,
		Mode:      string(run.Mode),
		Keyword:   run.Keyword,
		StartedAt: time.Now(),
	}}

	res, collectErr := scraper.New(session, s.files, opts...).Collect(ctx, run)
	if res == nil {
		return nil, collectErr
	}
	out.Posts = res.Posts
	out.Run.Status = string(res.Status)
	out.Run.PostCount = len(res.Posts)

	if len(res.Posts) > 0 {
		path, err := s.files.WriteFinal(run.Target, res.Posts)
		if err != nil {
			return out, fmt.Errorf("failed to write archive: %w", err)
		}
		out.Run.ArchivePath = path
		log.Info("archive written", "path", path, "posts", len(res.Posts))
	}
	out.Run.FinishedAt = time.Now()

	a.catalogRun(out)
	return out, collectErr
}

func (a *App) catalogRun(out *Outcome) {
	if a.catalog == nil {
		return
	}
	if len(out.Posts) > 0 {
		n, err := a.catalog.SavePosts(out.Posts, out.Run.FinishedAt)
		if err != nil {
			logger.Warn("failed to index posts", "target", out.Run.Target, "error", err)
		}
		out.Run.NewPosts = n
	}
	if err := a.catalog.RecordRun(&out.Run); err != nil {
		logger.Warn("failed to record run", "target", out.Run.Target, "error", err)
	}
}

// Archives loads every final archive in the archive directory, newest first.
// Files that fail to load are logged and skipped.
func (a *App) Archives(ctx context.Context) ([]*archive.Archive, error) {
	paths, err := archive.List(a.getSnapshot().files.Dir())
	if err != nil {
		return nil, err
	}

	var out []*archive.Archive
	for _, l := range archive.LoadAll(ctx, paths) {
		if l.Err != nil {
			logger.Warn("skipping archive", "path", l.Path, "error", l.Err)
			continue
		}
		out = append(out, l.Archive)
	}
	return out, ctx.Err()
}

// LatestArchive returns the most recently written archive.
func (a *App) LatestArchive() (*archive.Archive, error) {
	paths, err := archive.List(a.getSnapshot().files.Dir())
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoArchives
	}
	return archive.Load(paths[0])
}

// History returns catalogued runs, newest first.
func (a *App) History(target string, limit int) ([]store.Run, error) {
	if a.catalog == nil {
		return nil, errors.New("run catalog is disabled")
	}
	return a.catalog.ListRuns(types.NormalizeTarget(target), limit)
}

// KnownPosts returns how many distinct posts the catalog holds for target
// across all runs.
func (a *App) KnownPosts(target string) (int, error) {
	if a.catalog == nil {
		return 0, errors.New("run catalog is disabled")
	}
	return a.catalog.CountPosts(types.NormalizeTarget(target))
}

// OpenArchiveDir opens the archive directory in the file explorer.
func (a *App) OpenArchiveDir() error {
	dir := a.getSnapshot().files.Dir()
	logger.Info("opening archive directory", "path", dir)
	return browser.OpenFile(dir)
}

// ReloadConfig reloads the configuration from disk. The catalog and session
// opener are kept.
func (a *App) ReloadConfig() error {
	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config = cfg
	a.files = store.NewFileStore(cfg.Scraping.ArchiveDir)
	a.mu.Unlock()

	logger.Info("configuration reloaded", "archive_dir", cfg.Scraping.ArchiveDir)
	return nil
}
