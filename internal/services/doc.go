// Package services provides shared error classification and context
// annotation helpers used by pipeline stages and external clients.
//
// Stage code wraps failures with services.Wrap so log output and scheduler
// retry decisions can classify errors without string matching. Context
// helpers carry stage names and correlation identifiers into structured logs.
package services
