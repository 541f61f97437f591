// Package library persists media items and their derived enrichment data in
// SQLite.
//
// The Store manages database connections, schema initialization, chunked
// transactional writes, and the per-stage progress records. Media item
// inserts are first-write-wins on uri, which makes the scan stage naturally
// idempotent at the storage layer. Derived tables (object_labels,
// text_annotations) and the location columns on media_items are the source
// of truth for remaining stage work; stage_status rows are progress
// estimates for reporting only.
//
// Writes emit best-effort events on the store's channel so other layers can
// refresh derived views without polling.
//
// Treat this package as the single source of truth for persistence
// semantics; schema changes go in schema.sql with a schemaVersion bump.
package library
