package library

import (
	"context"
	"fmt"
	"time"
)

// GeocodeCandidates returns items with known coordinates that have not been
// resolved and still have retry budget, ordered by identity for stable
// sequential processing.
func (s *Store) GeocodeCandidates(ctx context.Context, retryCap int) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM media_items
        WHERE latitude IS NOT NULL AND longitude IS NOT NULL
          AND location_resolved = 0 AND location_retry_count < ?
        ORDER BY uri`, retryCap)
	if err != nil {
		return nil, fmt.Errorf("query geocode candidates: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkLocationResolved persists a successful reverse-geocode result.
func (s *Store) MarkLocationResolved(ctx context.Context, uri, place string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_items SET location_name = ?, location_resolved = 1, updated_at = ? WHERE uri = ?`,
		place, time.Now().UTC().Format(time.RFC3339Nano), uri)
	if err != nil {
		return fmt.Errorf("mark location resolved: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		s.emit(Event{Table: "media_items", Op: "geocode", Count: int(affected)})
	}
	return nil
}

// RecordLocationFailure increments the retry counter for one item. When the
// counter reaches the cap the item is also marked resolved so normal runs
// never retry it again; it remains "attempted, unresolved" until a recovery
// sweep resets it.
func (s *Store) RecordLocationFailure(ctx context.Context, uri string, retryCap int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_items
         SET location_retry_count = location_retry_count + 1,
             location_resolved = CASE WHEN location_retry_count + 1 >= ? THEN 1 ELSE 0 END,
             updated_at = ?
         WHERE uri = ?`,
		retryCap, time.Now().UTC().Format(time.RFC3339Nano), uri)
	if err != nil {
		return fmt.Errorf("record location failure: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		s.emit(Event{Table: "media_items", Op: "geocode", Count: int(affected)})
	}
	return nil
}

// ResetUnresolvedLocations is the recovery sweep: items that ended a run with
// an empty place name but remaining retry budget get location_resolved
// cleared so the geocode stage picks them up again.
func (s *Store) ResetUnresolvedLocations(ctx context.Context, retryCap int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_items
         SET location_resolved = 0, updated_at = ?
         WHERE location_name = '' AND location_resolved = 1
           AND latitude IS NOT NULL AND longitude IS NOT NULL
           AND location_retry_count < ?`,
		time.Now().UTC().Format(time.RFC3339Nano), retryCap)
	if err != nil {
		return 0, fmt.Errorf("reset unresolved locations: %w", err)
	}
	reset, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if reset > 0 {
		s.emit(Event{Table: "media_items", Op: "geocode_reset", Count: int(reset)})
	}
	return reset, nil
}

// CountResolvedLocations returns how many items carry a non-empty place name.
func (s *Store) CountResolvedLocations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM media_items WHERE location_resolved = 1 AND location_name != ''`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count resolved locations: %w", err)
	}
	return count, nil
}
