// Package mediaindex abstracts where media files come from. The scan stage
// consumes the Source interface; FSSource is the filesystem implementation
// used by the daemon.
package mediaindex
