package pipeline

import (
	"context"
	"log/slog"
	"time"

	"lumen/internal/config"
	"lumen/internal/logging"
	"lumen/internal/notifications"
	"lumen/internal/scheduler"
	"lumen/internal/services"
	"lumen/internal/stage"
)

// Pipeline wires the enrichment stages into scheduler jobs. The scan stage
// runs first; object detection and location geocoding each run after it and
// are otherwise independent. Text recognition joins the chain only when
// enabled in config.
type Pipeline struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	handlers map[string]stage.Handler
	notifier notifications.Service
	logger   *slog.Logger
}

// New builds a pipeline over the given stage handlers.
func New(cfg *config.Config, sched *scheduler.Scheduler, notifier notifications.Service, logger *slog.Logger, handlers ...stage.Handler) *Pipeline {
	byName := make(map[string]stage.Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	return &Pipeline{
		cfg:      cfg,
		sched:    sched,
		handlers: byName,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Start submits the full enrichment chain. Scheduler-level name
// deduplication means calling Start while a pipeline is already in flight
// changes nothing. It reports whether a new scan job was actually queued.
func (p *Pipeline) Start() bool {
	submitted := p.submit(stage.NameScan, "")
	p.submit(stage.NameObjectDetection, stage.NameScan)
	p.submit(stage.NameLocationGeocode, stage.NameScan)
	if p.cfg.TextRecognition.Enabled {
		p.submit(stage.NameTextRecognition, stage.NameScan)
	}
	return submitted
}

// StartStage submits a single stage with no ordering edge, for targeted
// reruns from the CLI. Unknown names report false.
func (p *Pipeline) StartStage(name string) bool {
	if _, ok := p.handlers[name]; !ok {
		return false
	}
	return p.submit(name, "")
}

// RunStageOnce submits one stage and blocks until the scheduler settles.
func (p *Pipeline) RunStageOnce(ctx context.Context, name string) error {
	if _, ok := p.handlers[name]; !ok {
		return services.Wrap(services.ErrValidation, name, "start", "unknown stage", nil)
	}
	p.StartStage(name)
	return p.sched.WaitIdle(ctx)
}

// RunOnce starts the pipeline and blocks until every job has settled, then
// reports completion. It is the synchronous entry point used by the CLI.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	started := time.Now()
	p.Start()
	if err := p.sched.WaitIdle(ctx); err != nil {
		return err
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyPipelineCompleted(ctx, time.Since(started)); err != nil {
			p.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return nil
}

// Health runs every stage's health check.
func (p *Pipeline) Health(ctx context.Context) []stage.Health {
	names := []string{
		stage.NameScan,
		stage.NameObjectDetection,
		stage.NameTextRecognition,
		stage.NameLocationGeocode,
	}
	var checks []stage.Health
	for _, name := range names {
		handler, ok := p.handlers[name]
		if !ok {
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}

// JobStatus exposes the scheduler state for one stage.
func (p *Pipeline) JobStatus(name string) *scheduler.JobStatus {
	return p.sched.Status(name)
}

func (p *Pipeline) submit(name, after string) bool {
	handler, ok := p.handlers[name]
	if !ok {
		return false
	}
	fn := func(ctx context.Context) error {
		return handler.Run(services.WithStage(ctx, name))
	}
	if after == "" {
		return p.sched.Submit(name, fn)
	}
	return p.sched.SubmitAfter(name, after, fn)
}
