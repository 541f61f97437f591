package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lumen/internal/batch"
	"lumen/internal/config"
	"lumen/internal/library"
	"lumen/internal/logging"
	"lumen/internal/notifications"
	"lumen/internal/services"
	"lumen/internal/stage"
)

// Detector labels media items that have no object labels yet.
type Detector struct {
	cfg      *config.Config
	store    *library.Store
	engine   Engine
	notifier notifications.Service
	logger   *slog.Logger

	// Serializes engine calls; inference backends keep mutable model state.
	mu sync.Mutex
}

// NewDetector builds the object detection stage.
func NewDetector(cfg *config.Config, store *library.Store, engine Engine, notifier notifications.Service, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, stage.NameObjectDetection),
	}
}

func (d *Detector) Name() string { return stage.NameObjectDetection }

// HealthCheck asks the inference engine whether it can serve.
func (d *Detector) HealthCheck(ctx context.Context) stage.Health {
	if d.engine == nil {
		return stage.Unhealthy(stage.NameObjectDetection, "no engine configured")
	}
	if err := d.engine.Ready(ctx); err != nil {
		return stage.Unhealthy(stage.NameObjectDetection, fmt.Sprintf("engine: %v", err))
	}
	return stage.Healthy(stage.NameObjectDetection)
}

// Run labels every item missing object labels. Work is recomputed from the
// store, so interrupted runs resume with only the uncommitted chunk redone.
// A failing item is skipped and revisited on the next run.
func (d *Detector) Run(ctx context.Context) error {
	if d.engine == nil {
		d.logger.Warn("no inference engine configured, skipping detection")
		return nil
	}

	items, err := d.store.ItemsMissingLabels(ctx)
	if err != nil {
		return d.fail(ctx, services.Wrap(services.ErrTransient, stage.NameObjectDetection, "worklist", "load unlabeled items", err))
	}
	if len(items) == 0 {
		d.logger.Info("no unlabeled items")
		status, err := d.store.StageStatusByName(ctx, stage.NameObjectDetection)
		if err != nil {
			return d.fail(ctx, services.Wrap(services.ErrTransient, stage.NameObjectDetection, "status", "load stage status", err))
		}
		// A completed row keeps the counters of the run that did the work.
		if status != nil && status.Status == library.StageCompleted {
			return nil
		}
		if err := d.store.BeginStage(ctx, stage.NameObjectDetection, 0, 0); err != nil {
			return d.fail(ctx, services.Wrap(services.ErrTransient, stage.NameObjectDetection, "begin", "record stage start", err))
		}
		return d.complete(ctx, 0)
	}

	d.logger.Info("detection started", logging.Int("remaining", len(items)))
	if err := d.store.BeginStage(ctx, stage.NameObjectDetection, len(items), 0); err != nil {
		return d.fail(ctx, services.Wrap(services.ErrTransient, stage.NameObjectDetection, "begin", "record stage start", err))
	}

	stats, err := batch.Run(ctx, items, batch.Config[*library.MediaItem, library.ObjectLabel]{
		ChunkSize: d.cfg.Detection.BatchSize,
		Workers:   d.cfg.Detection.Parallelism,
		Logger:    d.logger,
		Process:   d.detectOne,
		Persist: func(ctx context.Context, labels []library.ObjectLabel) error {
			return d.store.ReplaceObjectLabels(ctx, labels)
		},
		Progress: func(ctx context.Context, processed int) {
			if err := d.store.AdvanceStage(ctx, stage.NameObjectDetection, processed); err != nil {
				d.logger.Warn("progress checkpoint failed", logging.Error(err))
			}
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return d.fail(ctx, services.Wrap(services.ErrTransient, stage.NameObjectDetection, "persist", "persist labels", err))
	}

	d.logger.Info("detection completed",
		logging.Int("processed", stats.Processed),
		logging.Int("failed", stats.Failed))
	return d.complete(ctx, stats.Processed)
}

func (d *Detector) detectOne(ctx context.Context, item *library.MediaItem) ([]library.ObjectLabel, error) {
	d.mu.Lock()
	predictions, err := d.engine.Detect(ctx, item.Path)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", item.URI, err)
	}

	labels := make([]library.ObjectLabel, 0, len(predictions))
	for _, p := range predictions {
		if p.Confidence < d.cfg.Detection.MinConfidence {
			continue
		}
		labels = append(labels, library.ObjectLabel{
			URI:        item.URI,
			Label:      p.Label,
			Confidence: p.Confidence,
		})
	}
	return labels, nil
}

func (d *Detector) complete(ctx context.Context, processed int) error {
	if err := d.store.CompleteStage(ctx, stage.NameObjectDetection); err != nil {
		return services.Wrap(services.ErrTransient, stage.NameObjectDetection, "complete", "record stage completion", err)
	}
	if d.notifier != nil && processed > 0 {
		if err := d.notifier.NotifyStageCompleted(ctx, stage.NameObjectDetection, processed); err != nil {
			d.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return nil
}

func (d *Detector) fail(ctx context.Context, cause error) error {
	if err := d.store.FailStage(ctx, stage.NameObjectDetection); err != nil {
		d.logger.Warn("failed to record stage failure", logging.Error(err))
	}
	if d.notifier != nil {
		if err := d.notifier.NotifyStageFailed(ctx, stage.NameObjectDetection, cause); err != nil {
			d.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return cause
}
