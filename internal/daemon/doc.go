// Package daemon assembles and runs the enrichment process: it enforces a
// single instance per data directory, heals interrupted state at startup,
// and drives the pipeline through the scheduler until shutdown.
package daemon
