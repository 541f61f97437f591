package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "uri, path, display_name, size_bytes, mime_type, width, height, album, taken_at, added_at, year, month, day, latitude, longitude, location_resolved, location_retry_count, location_name, favorite, archived, trashed, trashed_at, created_at, updated_at"

// prefixedItemColumns qualifies itemColumns with a table alias for joins.
func prefixedItemColumns(alias string) string {
	return alias + "." + strings.ReplaceAll(itemColumns, ", ", ", "+alias+".")
}

// InsertMediaItems writes a chunk of scanned items in a single transaction.
// Duplicate URIs are ignored (first write wins), which makes rescans of an
// unchanged index idempotent. Returns the number of rows actually inserted.
func (s *Store) InsertMediaItems(ctx context.Context, items []*MediaItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO media_items (`+itemColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var inserted int64
	for _, item := range items {
		if item == nil || item.URI == "" {
			continue
		}
		item.DeriveDate()
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		res, err := stmt.ExecContext(ctx,
			item.URI,
			item.Path,
			item.DisplayName,
			item.SizeBytes,
			item.MimeType,
			item.Width,
			item.Height,
			item.Album,
			timeToString(item.TakenAt),
			timeToString(item.AddedAt),
			item.Year,
			item.Month,
			item.Day,
			nullableFloat(item.Latitude),
			nullableFloat(item.Longitude),
			boolToInt(item.LocationResolved),
			item.LocationRetryCount,
			item.LocationName,
			boolToInt(item.Favorite),
			boolToInt(item.Archived),
			boolToInt(item.Trashed),
			nullableTime(item.TrashedAt),
			createdAt.Format(time.RFC3339Nano),
			createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("insert media item %s: %w", item.URI, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			inserted += affected
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert tx: %w", err)
	}
	if inserted > 0 {
		s.emit(Event{Table: "media_items", Op: "insert", Count: int(inserted)})
	}
	return inserted, nil
}

// KnownURIs returns the set of all media item identities.
func (s *Store) KnownURIs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uri FROM media_items`)
	if err != nil {
		return nil, fmt.Errorf("query known uris: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		known[uri] = struct{}{}
	}
	return known, rows.Err()
}

// CountMediaItems returns the total number of media items.
func (s *Store) CountMediaItems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM media_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count media items: %w", err)
	}
	return count, nil
}

// GetByURI fetches a media item by identity.
func (s *Store) GetByURI(ctx context.Context, uri string) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media_items WHERE uri = ?`, uri)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// ListMediaItems returns all media items ordered by capture date, newest first.
func (s *Store) ListMediaItems(ctx context.Context) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM media_items ORDER BY year DESC, month DESC, day DESC, uri`)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
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

// SetFavorite toggles the favorite flag on an item.
func (s *Store) SetFavorite(ctx context.Context, uri string, favorite bool) error {
	return s.setItemFlag(ctx, uri, "favorite", favorite)
}

// SetArchived toggles the archived flag on an item.
func (s *Store) SetArchived(ctx context.Context, uri string, archived bool) error {
	return s.setItemFlag(ctx, uri, "archived", archived)
}

func (s *Store) setItemFlag(ctx context.Context, uri, column string, value bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_items SET `+column+` = ?, updated_at = ? WHERE uri = ?`,
		boolToInt(value), time.Now().UTC().Format(time.RFC3339Nano), uri)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		s.emit(Event{Table: "media_items", Op: "update", Count: int(affected)})
	}
	return nil
}

// SoftDelete marks an item as trashed with a deletion timestamp. Trashed
// items remain until PurgeTrashed removes them after the retention window.
func (s *Store) SoftDelete(ctx context.Context, uri string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_items SET trashed = 1, trashed_at = ?, updated_at = ? WHERE uri = ? AND trashed = 0`,
		now, now, uri)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		s.emit(Event{Table: "media_items", Op: "trash", Count: int(affected)})
	}
	return nil
}

// Restore clears the trashed flag on an item.
func (s *Store) Restore(ctx context.Context, uri string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE media_items SET trashed = 0, trashed_at = NULL, updated_at = ? WHERE uri = ? AND trashed = 1`,
		time.Now().UTC().Format(time.RFC3339Nano), uri)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		s.emit(Event{Table: "media_items", Op: "restore", Count: int(affected)})
	}
	return nil
}

// BackdateTrash rewrites an item's deletion timestamp. It exists for
// retention administration and tests; normal soft deletes stamp the current
// time.
func (s *Store) BackdateTrash(ctx context.Context, uri string, trashedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE media_items SET trashed_at = ? WHERE uri = ? AND trashed = 1`,
		trashedAt.UTC().Format(time.RFC3339Nano), uri)
	if err != nil {
		return fmt.Errorf("backdate trash: %w", err)
	}
	return nil
}

// PurgeTrashed physically deletes items soft-deleted before the cutoff.
// Derived labels and annotations cascade.
func (s *Store) PurgeTrashed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM media_items WHERE trashed = 1 AND trashed_at IS NOT NULL AND trashed_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge trashed: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if purged > 0 {
		s.emit(Event{Table: "media_items", Op: "purge", Count: int(purged)})
	}
	return purged, nil
}

func scanMediaItem(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		uri           string
		path          string
		displayName   sql.NullString
		sizeBytes     sql.NullInt64
		mimeType      sql.NullString
		width         sql.NullInt64
		height        sql.NullInt64
		album         sql.NullString
		takenRaw      sql.NullString
		addedRaw      sql.NullString
		year          sql.NullInt64
		month         sql.NullInt64
		day           sql.NullInt64
		latitude      sql.NullFloat64
		longitude     sql.NullFloat64
		locResolved   sql.NullInt64
		locRetryCount sql.NullInt64
		locName       sql.NullString
		favorite      sql.NullInt64
		archived      sql.NullInt64
		trashed       sql.NullInt64
		trashedRaw    sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&uri,
		&path,
		&displayName,
		&sizeBytes,
		&mimeType,
		&width,
		&height,
		&album,
		&takenRaw,
		&addedRaw,
		&year,
		&month,
		&day,
		&latitude,
		&longitude,
		&locResolved,
		&locRetryCount,
		&locName,
		&favorite,
		&archived,
		&trashed,
		&trashedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		URI:                uri,
		Path:               path,
		DisplayName:        displayName.String,
		SizeBytes:          sizeBytes.Int64,
		MimeType:           mimeType.String,
		Width:              int(width.Int64),
		Height:             int(height.Int64),
		Album:              album.String,
		Year:               int(year.Int64),
		Month:              int(month.Int64),
		Day:                int(day.Int64),
		LocationResolved:   locResolved.Int64 != 0,
		LocationRetryCount: int(locRetryCount.Int64),
		LocationName:       locName.String,
		Favorite:           favorite.Int64 != 0,
		Archived:           archived.Int64 != 0,
		Trashed:            trashed.Int64 != 0,
	}
	if latitude.Valid {
		v := latitude.Float64
		item.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		item.Longitude = &v
	}
	if takenRaw.Valid {
		if t, err := parseTimeString(takenRaw.String); err == nil {
			item.TakenAt = t
		}
	}
	if addedRaw.Valid {
		if t, err := parseTimeString(addedRaw.String); err == nil {
			item.AddedAt = t
		}
	}
	if trashedRaw.Valid {
		if t, err := parseTimeString(trashedRaw.String); err == nil {
			item.TrashedAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
