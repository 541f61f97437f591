// Package stage defines the contract every enrichment stage implements and
// the canonical stage names shared by the store, scheduler, and CLI.
package stage
