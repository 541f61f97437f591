package library

import (
	"context"
	"fmt"
)

// URIsMissingLabels recomputes the object detection work list: all known
// media item identities without any object label row. This set difference,
// not the stage_status counters, is the source of truth for remaining work.
func (s *Store) URIsMissingLabels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT m.uri FROM media_items m
        LEFT JOIN object_labels l ON l.uri = m.uri
        WHERE l.uri IS NULL
        ORDER BY m.uri`)
	if err != nil {
		return nil, fmt.Errorf("query uris missing labels: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

// ItemsMissingLabels is URIsMissingLabels with full rows, for stages that
// need file paths alongside identities.
func (s *Store) ItemsMissingLabels(ctx context.Context) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+prefixedItemColumns("m")+` FROM media_items m
        LEFT JOIN object_labels l ON l.uri = m.uri
        WHERE l.uri IS NULL
        ORDER BY m.uri`)
	if err != nil {
		return nil, fmt.Errorf("query items missing labels: %w", err)
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

// ReplaceObjectLabels persists a batch of detection results in a single
// transaction. Conflicting (uri, label) pairs are replaced.
func (s *Store) ReplaceObjectLabels(ctx context.Context, labels []ObjectLabel) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin label tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO object_labels (uri, label, confidence) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare label insert: %w", err)
	}
	defer stmt.Close()

	for _, label := range labels {
		if label.URI == "" || label.Label == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, label.URI, label.Label, label.Confidence); err != nil {
			return fmt.Errorf("insert label %s for %s: %w", label.Label, label.URI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit label tx: %w", err)
	}
	s.emit(Event{Table: "object_labels", Op: "insert", Count: len(labels)})
	return nil
}

// LabelsForURI returns the object labels attached to one item, highest
// confidence first.
func (s *Store) LabelsForURI(ctx context.Context, uri string) ([]ObjectLabel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uri, label, confidence FROM object_labels WHERE uri = ? ORDER BY confidence DESC, label`, uri)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []ObjectLabel
	for rows.Next() {
		var label ObjectLabel
		if err := rows.Scan(&label.URI, &label.Label, &label.Confidence); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// CountLabeledURIs returns how many media items have at least one label.
func (s *Store) CountLabeledURIs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT uri) FROM object_labels`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count labeled uris: %w", err)
	}
	return count, nil
}
