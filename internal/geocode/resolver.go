package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"lumen/internal/config"
	"lumen/internal/library"
	"lumen/internal/logging"
	"lumen/internal/notifications"
	"lumen/internal/services"
	"lumen/internal/stage"
)

// Resolver fills in place names for media items that carry coordinates.
type Resolver struct {
	cfg      *config.Config
	store    *library.Store
	client   Client
	limiter  *rate.Limiter
	notifier notifications.Service
	logger   *slog.Logger
}

// NewResolver builds the geocoding stage. Requests are paced by a token
// bucket sized for the configured request rate with no burst headroom, which
// is what public Nominatim instances expect.
func NewResolver(cfg *config.Config, store *library.Store, client Client, notifier notifications.Service, logger *slog.Logger) *Resolver {
	rps := cfg.Geocoding.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Resolver{
		cfg:      cfg,
		store:    store,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, stage.NameLocationGeocode),
	}
}

func (r *Resolver) Name() string { return stage.NameLocationGeocode }

// HealthCheck pings the geocoding service. A disabled stage is always
// healthy.
func (r *Resolver) HealthCheck(ctx context.Context) stage.Health {
	if !r.cfg.Geocoding.Enabled {
		return stage.Healthy(stage.NameLocationGeocode)
	}
	if r.client == nil {
		return stage.Unhealthy(stage.NameLocationGeocode, "no client configured")
	}
	if err := r.client.Ping(ctx); err != nil {
		return stage.Unhealthy(stage.NameLocationGeocode, err.Error())
	}
	return stage.Healthy(stage.NameLocationGeocode)
}

// Run resolves place names for every candidate item, one request at a time
// under the rate limit. Failures spend one unit of the item's retry budget;
// an item that exhausts the budget is parked as resolved with an empty place
// so it never blocks the pipeline again. If the service is unreachable the
// whole run is skipped without spending any budget.
func (r *Resolver) Run(ctx context.Context) error {
	if !r.cfg.Geocoding.Enabled {
		r.logger.Info("geocoding disabled")
		return nil
	}
	if r.client == nil {
		r.logger.Warn("no geocode client configured, skipping run")
		return nil
	}

	if err := r.client.Ping(ctx); err != nil {
		r.logger.Warn("geocode service unreachable, skipping run", logging.Error(err))
		return nil
	}

	retryCap := r.cfg.Geocoding.RetryCap
	candidates, err := r.store.GeocodeCandidates(ctx, retryCap)
	if err != nil {
		return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameLocationGeocode, "worklist", "load geocode candidates", err))
	}
	if len(candidates) == 0 {
		r.logger.Info("no geocode candidates")
		if err := r.store.BeginStage(ctx, stage.NameLocationGeocode, 0, 0); err != nil {
			return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameLocationGeocode, "begin", "record stage start", err))
		}
		return r.complete(ctx, 0)
	}

	r.logger.Info("geocoding started", logging.Int("remaining", len(candidates)))
	if err := r.store.BeginStage(ctx, stage.NameLocationGeocode, len(candidates), 0); err != nil {
		return r.fail(ctx, services.Wrap(services.ErrTransient, stage.NameLocationGeocode, "begin", "record stage start", err))
	}

	var resolved, failed int
	for i, item := range candidates {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := r.resolveOne(ctx, item, retryCap); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			failed++
		} else {
			resolved++
		}
		if err := r.store.AdvanceStage(ctx, stage.NameLocationGeocode, i+1); err != nil {
			r.logger.Warn("progress checkpoint failed", logging.Error(err))
		}
	}

	r.logger.Info("geocoding completed",
		logging.Int("resolved", resolved),
		logging.Int("failed", failed))
	return r.complete(ctx, resolved)
}

func (r *Resolver) resolveOne(ctx context.Context, item *library.MediaItem, retryCap int) error {
	place, err := r.client.ReverseGeocode(ctx, *item.Latitude, *item.Longitude)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.Warn("reverse geocode failed",
			logging.String(logging.FieldURI, item.URI),
			logging.Int("retry_count", item.LocationRetryCount+1),
			logging.Error(err))
		if recordErr := r.store.RecordLocationFailure(ctx, item.URI, retryCap); recordErr != nil {
			r.logger.Warn("failed to record geocode failure", logging.Error(recordErr))
		}
		return fmt.Errorf("reverse geocode %s: %w", item.URI, err)
	}

	if err := r.store.MarkLocationResolved(ctx, item.URI, place); err != nil {
		return services.Wrap(services.ErrTransient, stage.NameLocationGeocode, "persist", "mark location resolved", err)
	}
	return nil
}

// Recover sweeps items that were parked as resolved with an empty place but
// still have retry budget, putting them back in the candidate set. It runs
// at daemon startup so interrupted geocode runs heal themselves.
func (r *Resolver) Recover(ctx context.Context) (int64, error) {
	reset, err := r.store.ResetUnresolvedLocations(ctx, r.cfg.Geocoding.RetryCap)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, stage.NameLocationGeocode, "recover", "reset unresolved locations", err)
	}
	if reset > 0 {
		r.logger.Info("recovered geocode candidates", logging.Int64("reset", reset))
	}
	return reset, nil
}

func (r *Resolver) complete(ctx context.Context, resolved int) error {
	if err := r.store.CompleteStage(ctx, stage.NameLocationGeocode); err != nil {
		return services.Wrap(services.ErrTransient, stage.NameLocationGeocode, "complete", "record stage completion", err)
	}
	if r.notifier != nil && resolved > 0 {
		if err := r.notifier.NotifyStageCompleted(ctx, stage.NameLocationGeocode, resolved); err != nil {
			r.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return nil
}

func (r *Resolver) fail(ctx context.Context, cause error) error {
	if err := r.store.FailStage(ctx, stage.NameLocationGeocode); err != nil {
		r.logger.Warn("failed to record stage failure", logging.Error(err))
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyStageFailed(ctx, stage.NameLocationGeocode, cause); err != nil {
			r.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return cause
}
