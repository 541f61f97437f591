package library

import (
	"strings"
	"time"
)

// StageState represents the lifecycle of an enrichment stage.
type StageState string

const (
	StagePending   StageState = "pending"
	StageRunning   StageState = "running"
	StageCompleted StageState = "completed"
	StageFailed    StageState = "failed"
)

var stageStates = map[StageState]struct{}{
	StagePending:   {},
	StageRunning:   {},
	StageCompleted: {},
	StageFailed:    {},
}

// ParseStageState converts a string into a known StageState.
func ParseStageState(value string) (StageState, bool) {
	normalized := StageState(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stageStates[normalized]
	return normalized, ok
}

// MediaItem is one discovered media file plus its enrichment state.
//
// The uri is the stable identity; inserts of a duplicate uri are ignored so
// rescans of an unchanged index are no-ops.
type MediaItem struct {
	URI                string
	Path               string
	DisplayName        string
	SizeBytes          int64
	MimeType           string
	Width              int
	Height             int
	Album              string
	TakenAt            time.Time
	AddedAt            time.Time
	Year               int
	Month              int
	Day                int
	Latitude           *float64
	Longitude          *float64
	LocationResolved   bool
	LocationRetryCount int
	LocationName       string
	Favorite           bool
	Archived           bool
	Trashed            bool
	TrashedAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasCoordinates reports whether the item carries a GPS position.
func (m *MediaItem) HasCoordinates() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// DeriveDate fills Year/Month/Day from TakenAt, falling back to AddedAt when
// the capture time is unknown.
func (m *MediaItem) DeriveDate() {
	ts := m.TakenAt
	if ts.IsZero() {
		ts = m.AddedAt
	}
	if ts.IsZero() {
		return
	}
	m.Year, m.Month, m.Day = ts.Year(), int(ts.Month()), ts.Day()
}

// ObjectLabel is a classifier label attached to a media item.
type ObjectLabel struct {
	URI        string
	Label      string
	Confidence float64
}

// AnnotationKind distinguishes granularity levels of recognized text.
type AnnotationKind string

const (
	KindFullText AnnotationKind = "full_text"
	KindBlock    AnnotationKind = "block"
	KindLine     AnnotationKind = "line"
	KindElement  AnnotationKind = "element"
)

// BoundingBox locates recognized text within the source image.
type BoundingBox struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// TextAnnotation is a piece of recognized text attached to a media item.
type TextAnnotation struct {
	ID         int64
	URI        string
	Text       string
	Kind       AnnotationKind
	Confidence float64
	Box        *BoundingBox
}

// StageStatus is the persisted progress estimate for one stage.
//
// It is reporting state only: remaining work is always recomputed from the
// derived tables, never from these counters.
type StageStatus struct {
	StageName      string
	TotalItems     int
	ProcessedItems int
	Status         StageState
	UpdatedAt      time.Time
}

// Event describes a store write, emitted on the store's event channel.
type Event struct {
	Table string
	Op    string
	Count int
}
