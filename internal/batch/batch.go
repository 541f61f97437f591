package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lumen/internal/logging"
)

// Config wires one batch run. Process handles a single item and may return
// any number of results; Persist commits one chunk's accumulated results
// atomically; Progress checkpoints the cumulative processed count after each
// committed chunk.
type Config[T, R any] struct {
	ChunkSize int
	Workers   int
	Logger    *slog.Logger
	Process   func(ctx context.Context, item T) ([]R, error)
	Persist   func(ctx context.Context, results []R) error
	Progress  func(ctx context.Context, processed int)
}

// Stats summarizes a completed batch run.
type Stats struct {
	Processed int
	Failed    int
}

// Run processes items in fixed-size chunks with bounded fan-out inside each
// chunk. A failing item is isolated: it contributes no results, is counted in
// Stats.Failed, and the run continues. A failing Persist aborts the run with
// everything before the current chunk already committed, so a rerun resumes
// from the first uncommitted item. Cancellation is honored at chunk
// boundaries; results of a cancelled chunk are never persisted.
func Run[T, R any](ctx context.Context, items []T, cfg Config[T, R]) (Stats, error) {
	var stats Stats
	if cfg.Process == nil {
		return stats, errors.New("batch: process function is required")
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(items)
	}
	if chunkSize <= 0 {
		return stats, nil
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for start := 0; start < len(items); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		perItem := make([][]R, len(chunk))
		failures := make([]error, len(chunk))

		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for i, item := range chunk {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, item T) {
				defer wg.Done()
				defer func() { <-sem }()
				results, err := cfg.Process(ctx, item)
				if err != nil {
					failures[i] = err
					return
				}
				perItem[i] = results
			}(i, item)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var results []R
		for i := range chunk {
			if failures[i] != nil {
				stats.Failed++
				logger.Warn("item failed, continuing",
					logging.Int("chunk_offset", start+i),
					logging.Error(failures[i]))
				continue
			}
			results = append(results, perItem[i]...)
		}

		if cfg.Persist != nil {
			if err := cfg.Persist(ctx, results); err != nil {
				return stats, fmt.Errorf("persist chunk at offset %d: %w", start, err)
			}
		}
		stats.Processed += len(chunk)
		if cfg.Progress != nil {
			cfg.Progress(ctx, stats.Processed)
		}
	}
	return stats, nil
}
