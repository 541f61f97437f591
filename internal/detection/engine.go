package detection

import "context"

// Prediction is one classifier hit for an image.
type Prediction struct {
	Label      string
	Confidence float64
}

// Engine runs object detection over a single image file. Engines are not
// required to be safe for concurrent use; the detector serializes calls.
type Engine interface {
	Detect(ctx context.Context, path string) ([]Prediction, error)
	Ready(ctx context.Context) error
}
