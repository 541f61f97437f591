package mediaindex

import (
	"context"
	"time"
)

// Record is one media file reported by a Source. URI is the stable identity
// used throughout the library; everything else is descriptive metadata
// captured at discovery time.
type Record struct {
	URI         string
	Path        string
	DisplayName string
	SizeBytes   int64
	MimeType    string
	Width       int
	Height      int
	Album       string
	TakenAt     time.Time
	AddedAt     time.Time
}

// Source enumerates the media files the pipeline should track. The scan
// stage diffs this listing against the store, so a Source may return the
// complete index on every call.
type Source interface {
	List(ctx context.Context) ([]Record, error)
}
