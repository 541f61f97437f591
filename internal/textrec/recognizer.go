package textrec

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

// Recognizer extracts text from media items that have no annotations yet.
type Recognizer struct {
	cfg      *config.Config
	store    *library.Store
	engine   Engine
	cache    *resultCache
	notifier notifications.Service
	logger   *slog.Logger

	mu sync.Mutex
}

// NewRecognizer builds the text recognition stage.
func NewRecognizer(cfg *config.Config, store *library.Store, engine Engine, notifier notifications.Service, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		cache:    newResultCache(cfg.TextRecognition.CacheSize),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, stage.NameTextRecognition),
	}
}

func (r *Recognizer) Name() string { return stage.NameTextRecognition }

// HealthCheck asks the recognition engine whether it can serve. A disabled
// stage is always healthy.
func (r *Recognizer) HealthCheck(ctx context.Context) stage.Health {
	if !r.cfg.TextRecognition.Enabled {
		return stage.Healthy(stage.NameTextRecognition)
	}
	if r.engine == nil {
		return stage.Unhealthy(stage.NameTextRecognition, "no engine configured")
	}
	if err := r.engine.Ready(ctx); err != nil {
		return stage.Unhealthy(stage.NameTextRecognition, fmt.Sprintf("engine: %v", err))
	}
	return stage.Healthy(stage.NameTextRecognition)
}

// Run annotates every item missing recognized text. The stage can be
// disabled entirely, in which case it completes without touching the store.
func (r *Recognizer) Run(ctx context.Context) error {
	if !r.cfg.TextRecognition.Enabled {
		r.logger.Info("text recognition disabled")
		return nil
	}
	if r.engine == nil {
		r.logger.Warn("no recognition engine configured, skipping")
		return nil
	}

	items, err := r.store.ItemsMissingText(ctx)
	if err != nil {
		return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameTextRecognition, "worklist", "load unannotated items", err))
	}
	if len(items) == 0 {
		r.logger.Info("no unannotated items")
		status, err := r.store.StageStatusByName(ctx, stage.NameTextRecognition)
		if err != nil {
			return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameTextRecognition, "status", "load stage status", err))
		}
		// A completed row keeps the counters of the run that did the work.
		if status != nil && status.Status == library.StageCompleted {
			return nil
		}
		if err := r.store.BeginStage(ctx, stage.NameTextRecognition, 0, 0); err != nil {
			return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameTextRecognition, "begin", "record stage start", err))
		}
		return r.complete(ctx, 0)
	}

	r.logger.Info("recognition started", logging.Int("remaining", len(items)))
	if err := r.store.BeginStage(ctx, stage.NameTextRecognition, len(items), 0); err != nil {
		return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameTextRecognition, "begin", "record stage start", err))
	}

	stats, err := batch.Run(ctx, items, batch.Config[*library.MediaItem, library.TextAnnotation]{
		ChunkSize: r.cfg.TextRecognition.BatchSize,
		Workers:   r.cfg.TextRecognition.Parallelism,
		Logger:    r.logger,
		Process:   r.recognizeOne,
		Persist: func(ctx context.Context, annotations []library.TextAnnotation) error {
			return r.store.InsertTextAnnotations(ctx, annotations)
		},
		Progress: func(ctx context.Context, processed int) {
			if err := r.store.AdvanceStage(ctx, stage.NameTextRecognition, processed); err != nil {
				r.logger.Warn("progress checkpoint failed", logging.Error(err))
			}
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameTextRecognition, "persist", "persist annotations", err))
	}

	r.logger.Info("recognition completed",
		logging.Int("processed", stats.Processed),
		logging.Int("failed", stats.Failed))
	return r.complete(ctx, stats.Processed)
}

func (r *Recognizer) recognizeOne(ctx context.Context, item *library.MediaItem) ([]library.TextAnnotation, error) {
	fragments, cached := r.cache.get(item.Path)
	if !cached {
		r.mu.Lock()
		result, err := r.engine.Recognize(ctx, item.Path)
		r.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", item.URI, err)
		}
		fragments = result
		r.cache.put(item.Path, fragments)
	}

	annotations := make([]library.TextAnnotation, 0, len(fragments))
	for _, f := range fragments {
		if f.Text == "" {
			continue
		}
		kind := f.Kind
		if kind == "" {
			kind = library.KindFullText
		}
		annotations = append(annotations, library.TextAnnotation{
			URI:        item.URI,
			Text:       f.Text,
			Kind:       kind,
			Confidence: f.Confidence,
			Box:        f.Box,
		})
	}
	return annotations, nil
}

func (r *Recognizer) complete(ctx context.Context, processed int) error {
	if err := r.store.CompleteStage(ctx, stage.NameTextRecognition); err != nil {
		return services.Wrap(services.ErrTransient, stage.NameTextRecognition, "complete", "record stage completion", err)
	}
	if r.notifier != nil && processed > 0 {
		if err := r.notifier.NotifyStageCompleted(ctx, stage.NameTextRecognition, processed); err != nil {
			r.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return nil
}

func (r *Recognizer) fail(ctx context.Context, cause error) error {
	if err := r.store.FailStage(ctx, stage.NameTextRecognition); err != nil {
		r.logger.Warn("failed to record stage failure", logging.Error(err))
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyStageFailed(ctx, stage.NameTextRecognition, cause); err != nil {
			r.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return cause
}
