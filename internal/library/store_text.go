package library

import (
	"context"
	"database/sql"
	"fmt"
)

// URIsMissingText recomputes the text recognition work list: all known media
// item identities without any text annotation row.
func (s *Store) URIsMissingText(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT m.uri FROM media_items m
        LEFT JOIN text_annotations t ON t.uri = m.uri
        WHERE t.uri IS NULL
        ORDER BY m.uri`)
	if err != nil {
		return nil, fmt.Errorf("query uris missing text: %w", err)
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

// ItemsMissingText is URIsMissingText with full rows, for stages that need
// file paths alongside identities.
func (s *Store) ItemsMissingText(ctx context.Context) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+prefixedItemColumns("m")+` FROM media_items m
        LEFT JOIN text_annotations t ON t.uri = m.uri
        WHERE t.uri IS NULL
        ORDER BY m.uri`)
	if err != nil {
		return nil, fmt.Errorf("query items missing text: %w", err)
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

// InsertTextAnnotations persists a batch of recognition results in a single
// transaction.
func (s *Store) InsertTextAnnotations(ctx context.Context, annotations []TextAnnotation) error {
	if len(annotations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin annotation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO text_annotations
        (uri, text, kind, confidence, bbox_left, bbox_top, bbox_right, bbox_bottom)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare annotation insert: %w", err)
	}
	defer stmt.Close()

	for _, ann := range annotations {
		if ann.URI == "" || ann.Text == "" {
			continue
		}
		kind := ann.Kind
		if kind == "" {
			kind = KindFullText
		}
		var left, top, right, bottom any
		if ann.Box != nil {
			left, top, right, bottom = ann.Box.Left, ann.Box.Top, ann.Box.Right, ann.Box.Bottom
		}
		if _, err := stmt.ExecContext(ctx, ann.URI, ann.Text, string(kind), ann.Confidence, left, top, right, bottom); err != nil {
			return fmt.Errorf("insert annotation for %s: %w", ann.URI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotation tx: %w", err)
	}
	s.emit(Event{Table: "text_annotations", Op: "insert", Count: len(annotations)})
	return nil
}

// DeleteTextAnnotations removes all recognized text for one item so it can be
// re-processed.
func (s *Store) DeleteTextAnnotations(ctx context.Context, uri string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM text_annotations WHERE uri = ?`, uri)
	if err != nil {
		return 0, fmt.Errorf("delete annotations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if deleted > 0 {
		s.emit(Event{Table: "text_annotations", Op: "delete", Count: int(deleted)})
	}
	return deleted, nil
}

// AnnotationsForURI returns the recognized text attached to one item.
func (s *Store) AnnotationsForURI(ctx context.Context, uri string) ([]TextAnnotation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, uri, text, kind, confidence,
        bbox_left, bbox_top, bbox_right, bbox_bottom
        FROM text_annotations WHERE uri = ? ORDER BY id`, uri)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	var annotations []TextAnnotation
	for rows.Next() {
		var (
			ann                      TextAnnotation
			kind                     string
			left, top, right, bottom sql.NullFloat64
		)
		if err := rows.Scan(&ann.ID, &ann.URI, &ann.Text, &kind, &ann.Confidence, &left, &top, &right, &bottom); err != nil {
			return nil, err
		}
		ann.Kind = AnnotationKind(kind)
		if left.Valid && top.Valid && right.Valid && bottom.Valid {
			ann.Box = &BoundingBox{Left: left.Float64, Top: top.Float64, Right: right.Float64, Bottom: bottom.Float64}
		}
		annotations = append(annotations, ann)
	}
	return annotations, rows.Err()
}
