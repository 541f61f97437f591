package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"lumen/internal/batch"
	"lumen/internal/config"
	"lumen/internal/library"
	"lumen/internal/logging"
	"lumen/internal/mediaindex"
	"lumen/internal/notifications"
	"lumen/internal/services"
	"lumen/internal/stage"
)

// Scanner discovers new media files and registers them in the library.
type Scanner struct {
	cfg      *config.Config
	store    *library.Store
	source   mediaindex.Source
	gps      GPSReader
	notifier notifications.Service
	logger   *slog.Logger
}

// NewScanner builds the scan stage. A nil gps reader disables metadata
// extraction; a nil notifier suppresses notifications.
func NewScanner(cfg *config.Config, store *library.Store, source mediaindex.Source, gps GPSReader, notifier notifications.Service, logger *slog.Logger) *Scanner {
	if gps == nil {
		gps = ExifReader{}
	}
	return &Scanner{
		cfg:      cfg,
		store:    store,
		source:   source,
		gps:      gps,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, stage.NameScan),
	}
}

func (s *Scanner) Name() string { return stage.NameScan }

// HealthCheck verifies the library root is readable.
func (s *Scanner) HealthCheck(ctx context.Context) stage.Health {
	info, err := os.Stat(s.cfg.Paths.LibraryDir)
	if err != nil {
		return stage.Unhealthy(stage.NameScan, fmt.Sprintf("library root: %v", err))
	}
	if !info.IsDir() {
		return stage.Unhealthy(stage.NameScan, "library root is not a directory")
	}
	return stage.Healthy(stage.NameScan)
}

// Run lists the media index, diffs it against the store, and inserts the new
// items in chunks. Items already known keep their original rows, so rerunning
// a scan over an unchanged index is a no-op.
func (s *Scanner) Run(ctx context.Context) error {
	records, err := s.source.List(ctx)
	if err != nil {
		return s.fail(ctx, services.Wrap(services.ErrTransient, stage.NameScan, "list", "list media index", err))
	}

	known, err := s.store.KnownURIs(ctx)
	if err != nil {
		return s.fail(ctx, services.Wrap(services.ErrTransient, stage.NameScan, "diff", "load known uris", err))
	}

	fresh := records[:0]
	for _, record := range records {
		if _, ok := known[record.URI]; !ok {
			fresh = append(fresh, record)
		}
	}
	s.logger.Info("scan started",
		logging.Int("indexed", len(records)),
		logging.Int("new", len(fresh)))

	if err := s.store.BeginStage(ctx, stage.NameScan, len(fresh), 0); err != nil {
		return s.fail(ctx, services.Wrap(services.ErrTransient, stage.NameScan, "begin", "record stage start", err))
	}

	var added int64
	stats, err := batch.Run(ctx, fresh, batch.Config[mediaindex.Record, *library.MediaItem]{
		ChunkSize: s.cfg.Scan.ChunkSize,
		Workers:   s.cfg.Scan.Parallelism,
		Logger:    s.logger,
		Process: func(_ context.Context, record mediaindex.Record) ([]*library.MediaItem, error) {
			return []*library.MediaItem{s.buildItem(record)}, nil
		},
		Persist: func(ctx context.Context, items []*library.MediaItem) error {
			inserted, err := s.store.InsertMediaItems(ctx, items)
			added += inserted
			return err
		},
		Progress: func(ctx context.Context, processed int) {
			if err := s.store.AdvanceStage(ctx, stage.NameScan, processed); err != nil {
				s.logger.Warn("progress checkpoint failed", logging.Error(err))
			}
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return s.fail(ctx, services.Wrap(services.ErrTransient, stage.NameScan, "insert", "persist scanned items", err))
	}

	if err := s.store.CompleteStage(ctx, stage.NameScan); err != nil {
		return services.Wrap(services.ErrTransient, stage.NameScan, "complete", "record stage completion", err)
	}

	total, err := s.store.CountMediaItems(ctx)
	if err != nil {
		total = -1
	}
	s.logger.Info("scan completed",
		logging.Int("added", int(added)),
		logging.Int("processed", stats.Processed),
		logging.Int("total", total))
	if s.notifier != nil && added > 0 {
		if err := s.notifier.NotifyScanCompleted(ctx, int(added), total); err != nil {
			s.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return nil
}

// buildItem converts an index record into a library row, enriching it with
// capture metadata when the file has a readable header.
func (s *Scanner) buildItem(record mediaindex.Record) *library.MediaItem {
	item := &library.MediaItem{
		URI:         record.URI,
		Path:        record.Path,
		DisplayName: record.DisplayName,
		SizeBytes:   record.SizeBytes,
		MimeType:    record.MimeType,
		Width:       record.Width,
		Height:      record.Height,
		Album:       record.Album,
		TakenAt:     record.TakenAt,
		AddedAt:     record.AddedAt,
	}
	meta := s.gps.Read(record.Path)
	if item.TakenAt.IsZero() {
		item.TakenAt = meta.TakenAt
	}
	item.Latitude = meta.Latitude
	item.Longitude = meta.Longitude
	return item
}

func (s *Scanner) fail(ctx context.Context, cause error) error {
	if err := s.store.FailStage(ctx, stage.NameScan); err != nil {
		s.logger.Warn("failed to record stage failure", logging.Error(err))
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyStageFailed(ctx, stage.NameScan, cause); err != nil {
			s.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return cause
}
