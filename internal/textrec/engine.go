package textrec

import (
	"context"

	"lumen/internal/library"
)

// Fragment is one piece of recognized text at some granularity.
type Fragment struct {
	Text       string
	Kind       library.AnnotationKind
	Confidence float64
	Box        *library.BoundingBox
}

// Engine runs text recognition over a single image file. Engines are not
// required to be safe for concurrent use; the recognizer serializes calls.
type Engine interface {
	Recognize(ctx context.Context, path string) ([]Fragment, error)
	Ready(ctx context.Context) error
}
