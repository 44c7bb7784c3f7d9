// Package app orchestrates all components of dirfilter.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/brianly1003/dirfilter/internal/adapters/watcher"
	"github.com/brianly1003/dirfilter/internal/config"
	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/domain/events"
	"github.com/brianly1003/dirfilter/internal/domain/ports"
	"github.com/brianly1003/dirfilter/internal/filter"
	"github.com/brianly1003/dirfilter/internal/hub"
	"github.com/brianly1003/dirfilter/internal/server"
	"github.com/brianly1003/dirfilter/internal/tree"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// App is the main application struct that orchestrates all components.
type App struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger

	// Core components
	hub     *hub.Hub
	store   *tree.Store
	watcher *watcher.Watcher
	filter  *filter.ContinuousFilter
	server  *server.Server

	sessionID string
	startTime time.Time

	// ready is closed once the filter accepts patterns.
	ready chan struct{}

	// Lifecycle
	mu      sync.RWMutex
	running bool
}

// New creates a new App instance.
func New(cfg *config.Config, version string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return &App{
		cfg:       cfg,
		version:   version,
		logger:    newServerLogger(cfg.Logging),
		hub:       hub.New(),
		sessionID: uuid.New().String(),
		ready:     make(chan struct{}),
	}, nil
}

// newServerLogger builds the slog logger used by the HTTP server.
func newServerLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "trace", "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// Start loads the tree, starts every component and runs the continuous
// filter. It blocks until ctx is cancelled or the filter stops, then shuts
// everything down. A failed scan is returned.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		a.setStopped()
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	logSub := hub.NewFuncSubscriber("trace-log", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	})
	a.hub.Subscribe(logSub)

	if err := a.setup(ctx); err != nil {
		a.shutdown()
		return err
	}

	log.Info().
		Str("session_id", a.sessionID).
		Str("root", a.cfg.Root.Path).
		Str("version", a.version).
		Msg("session started")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// The filter ending for any reason ends the session.
		defer cancel()
		return a.filter.Start(gctx)
	})
	if a.watcher != nil {
		g.Go(func() error {
			<-gctx.Done()
			return a.watcher.Stop()
		})
	}
	if a.server != nil {
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Stop(shutdownCtx)
		})
	}

	err := g.Wait()
	a.shutdown()
	return err
}

// setup builds the tree store, watcher, filter and server.
func (a *App) setup(ctx context.Context) error {
	scanner, err := tree.NewScanner(a.cfg.Root.Path, tree.ScannerOptions{
		SkipDirectories: a.cfg.Root.SkipDirectories,
		IgnorePatterns:  a.cfg.Root.IgnorePatterns,
		IncludeHidden:   a.cfg.Root.IncludeHidden,
	})
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	scanStart := time.Now()
	a.store, err = tree.Load(ctx, scanner)
	if err != nil {
		return fmt.Errorf("failed to load tree: %w", err)
	}
	root := a.store.Current()
	log.Info().
		Str("root", scanner.RootPath()).
		Int("files", root.FileCount()).
		Int("directories", root.DirCount()).
		Dur("elapsed", time.Since(scanStart)).
		Msg("tree loaded")

	a.filter = filter.NewContinuousFilter(a.store, a.store.Changes(), filter.NewBroker(), a.hub, filter.Options{
		Matcher: filter.MatcherOptions{
			MaxConcurrentDirs: a.cfg.Matcher.MaxConcurrentDirs,
			FileWorkers:       a.cfg.Matcher.FileWorkers,
		},
		MaxPublishedPaths: a.cfg.Output.MaxResults,
	})

	if a.cfg.Watcher.Enabled {
		a.watcher = watcher.NewWatcher(scanner.RootPath(), scanner, a.hub, a.store, a.cfg.Watcher.DebounceMS)
		if err := a.watcher.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to start file watcher, tree will not follow changes")
			a.watcher = nil
		}
	} else {
		log.Info().Msg("file watcher disabled by config")
	}

	if a.cfg.Server.Enabled {
		a.server = server.New(a.cfg.Server.Host, a.cfg.Server.Port, a.filter, a.hub, a.logger, a.cfg.Output.MaxResults)
		if err := a.server.Start(); err != nil {
			if a.watcher != nil {
				_ = a.watcher.Stop()
			}
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	close(a.ready)
	return nil
}

// shutdown releases the components that outlive the run group.
func (a *App) shutdown() {
	log.Info().Msg("shutting down...")

	if a.store != nil {
		a.store.Close()
	}

	// Stop delivers the final matches_updated and filter_stopped events
	// before closing the subscribers.
	if err := a.hub.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping event hub")
	}

	a.setStopped()
}

func (a *App) setStopped() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// Ready returns a channel closed once patterns can be submitted.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// SetPattern submits a new filter pattern.
func (a *App) SetPattern(raw string) error {
	select {
	case <-a.ready:
	default:
		return domain.ErrNoTreeAvailable
	}
	return a.filter.SetPattern(raw)
}

// Stop asks a running app to stop once every pattern already submitted has
// been applied and published. Start returns once shutdown completes.
func (a *App) Stop() {
	select {
	case <-a.ready:
		a.filter.StopWhenIdle()
	default:
	}
}

// Latest returns the last published snapshot.
func (a *App) Latest() (filter.Snapshot, bool) {
	select {
	case <-a.ready:
		return a.filter.Latest()
	default:
		return filter.Snapshot{}, false
	}
}

// IsRunning reports whether Start is in progress.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// GetSessionID returns the current session ID.
func (a *App) GetSessionID() string {
	return a.sessionID
}

// Subscribe adds sub to the event hub. Subscribers added before Start see
// the initial matches.
func (a *App) Subscribe(sub ports.Subscriber) {
	a.hub.Subscribe(sub)
}

// GetHub returns the event hub.
func (a *App) GetHub() *hub.Hub {
	return a.hub
}

// GetConfig returns the application configuration.
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// UptimeSeconds returns the number of seconds since Start.
func (a *App) UptimeSeconds() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(a.startTime).Seconds())
}
