package stage

import "context"

// Canonical stage names. These are the identities used in stage_status rows
// and scheduler job names, so they must stay stable across releases.
const (
	NameScan            = "scan"
	NameObjectDetection = "object_detection"
	NameTextRecognition = "text_recognition"
	NameLocationGeocode = "location_geocode"
)

// Handler is one enrichment stage. Run processes all remaining work for the
// stage and returns only when the stage is completed, failed, or the context
// is cancelled. Handlers must be safe to re-run; remaining work is always
// recomputed from the store, so a rerun after a crash resumes where the last
// committed chunk left off.
type Handler interface {
	Name() string
	Run(ctx context.Context) error
	HealthCheck(ctx context.Context) Health
}

// Health reports whether a stage's external collaborators are reachable.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a passing health result.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true, Detail: "ok"}
}

// Unhealthy builds a failing health result with an explanation.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
