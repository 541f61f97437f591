// Package pipeline composes the enrichment stages into an ordered scheduler
// workload and offers the synchronous run-once entry point used by the CLI.
package pipeline
