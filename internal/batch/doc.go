// Package batch provides the chunked, resumable processing loop shared by
// the enrichment stages.
//
// Work is split into fixed-size chunks. Items within a chunk fan out to a
// bounded worker pool; the chunk's results are persisted in one transaction
// and progress is checkpointed only after that commit. Interrupting a run
// therefore loses at most the current chunk, and a rerun picks up from the
// first uncommitted item because remaining work is recomputed from the store.
package batch
