package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"lumen/internal/config"
	"lumen/internal/detection"
	"lumen/internal/geocode"
	"lumen/internal/library"
	"lumen/internal/logging"
	"lumen/internal/mediaindex"
	"lumen/internal/notifications"
	"lumen/internal/pipeline"
	"lumen/internal/scan"
	"lumen/internal/scheduler"
	"lumen/internal/services"
	"lumen/internal/textrec"
)

// Options carries the pluggable collaborators. Nil fields fall back to the
// production implementations; tests inject fakes.
type Options struct {
	Source          mediaindex.Source
	GPSReader       scan.GPSReader
	DetectionEngine detection.Engine
	TextEngine      textrec.Engine
	GeocodeClient   geocode.Client
	Notifier        notifications.Service
}

// Daemon owns the long-running enrichment process: the instance lock, the
// store, the scheduler worker, and the composed pipeline.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	lock     *flock.Flock
	store    *library.Store
	sched    *scheduler.Scheduler
	pipeline *pipeline.Pipeline
	resolver *geocode.Resolver
	notifier notifications.Service
}

// New acquires the single-instance lock and assembles the daemon. A second
// daemon pointed at the same data directory fails fast instead of corrupting
// shared state.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "startup", "ensure directories", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "startup", "acquire instance lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "", "startup",
			fmt.Sprintf("another instance holds %s", cfg.LockPath()), nil)
	}

	store, err := library.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	if opts.Source == nil {
		opts.Source = mediaindex.NewFSSource(cfg.Paths.LibraryDir, cfg.Scan.Extensions)
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(cfg)
	}
	if opts.GeocodeClient == nil {
		opts.GeocodeClient = geocode.NewNominatimClient(cfg)
	}

	sched := scheduler.New(cfg, logger)
	resolver := geocode.NewResolver(cfg, store, opts.GeocodeClient, opts.Notifier, logger)
	p := pipeline.New(cfg, sched, opts.Notifier, logger,
		scan.NewScanner(cfg, store, opts.Source, opts.GPSReader, opts.Notifier, logger),
		detection.NewDetector(cfg, store, opts.DetectionEngine, opts.Notifier, logger),
		textrec.NewRecognizer(cfg, store, opts.TextEngine, opts.Notifier, logger),
		resolver,
	)

	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lock:     lock,
		store:    store,
		sched:    sched,
		pipeline: p,
		resolver: resolver,
		notifier: opts.Notifier,
	}, nil
}

// Store exposes the daemon's library store.
func (d *Daemon) Store() *library.Store { return d.store }

// Run performs startup maintenance, starts the scheduler worker and the
// first pipeline pass, then blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.startupMaintenance(ctx); err != nil {
		return err
	}

	for _, check := range d.pipeline.Health(ctx) {
		if !check.Ready {
			d.logger.Warn("stage not ready",
				logging.String("stage", check.Name),
				logging.String("detail", check.Detail))
		}
	}

	go d.watchStoreEvents(ctx)
	go d.sched.Run(ctx)

	d.pipeline.Start()
	d.logger.Info("daemon started",
		logging.String("database", d.store.Path()),
		logging.String("library", d.cfg.Paths.LibraryDir))

	<-ctx.Done()
	d.logger.Info("daemon stopping")
	return nil
}

// RunOnce performs startup maintenance and a single synchronous pipeline
// pass, for the foreground CLI mode.
func (d *Daemon) RunOnce(ctx context.Context) error {
	if err := d.startupMaintenance(ctx); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.sched.Run(workerCtx)

	return d.pipeline.RunOnce(ctx)
}

// RunStage performs startup maintenance and a single synchronous run of one
// named stage, for targeted reruns from the CLI.
func (d *Daemon) RunStage(ctx context.Context, name string) error {
	if err := d.startupMaintenance(ctx); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.sched.Run(workerCtx)

	return d.pipeline.RunStageOnce(ctx, name)
}

// Close releases the store and the instance lock.
func (d *Daemon) Close() error {
	var firstErr error
	if err := d.store.Close(); err != nil {
		firstErr = err
	}
	if err := d.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// startupMaintenance heals state an interrupted process may have left
// behind: geocode candidates parked mid-run, and trash past its retention
// window.
func (d *Daemon) startupMaintenance(ctx context.Context) error {
	reset, err := d.resolver.Recover(ctx)
	if err != nil {
		d.notifyError(ctx, err, "startup maintenance")
		return err
	}
	if reset > 0 {
		d.logger.Info("requeued geocode candidates", logging.Int64("count", reset))
	}

	cutoff := time.Now().AddDate(0, 0, -d.cfg.Workflow.PurgeRetentionDays)
	purged, err := d.store.PurgeTrashed(ctx, cutoff)
	if err != nil {
		wrapped := services.Wrap(services.ErrTransient, "", "startup", "purge trashed items", err)
		d.notifyError(ctx, wrapped, "startup maintenance")
		return wrapped
	}
	if purged > 0 {
		d.logger.Info("purged expired trash", logging.Int64("count", purged))
	}
	return nil
}

func (d *Daemon) notifyError(ctx context.Context, err error, label string) {
	if d.notifier == nil {
		return
	}
	if notifyErr := d.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		d.logger.Warn("notification failed", logging.Error(notifyErr))
	}
}

// watchStoreEvents drains the store's write notifications into debug logs.
func (d *Daemon) watchStoreEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.store.Events():
			d.logger.Debug("store write",
				logging.String("table", event.Table),
				logging.String("op", event.Op),
				logging.Int("count", event.Count))
		}
	}
}
