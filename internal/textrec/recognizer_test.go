package textrec_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lumen/internal/library"
	"lumen/internal/stage"
	"lumen/internal/testsupport"
	"lumen/internal/textrec"
)

type fakeEngine struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    int

	recognize func(path string) ([]textrec.Fragment, error)
}

func (f *fakeEngine) Recognize(_ context.Context, path string) ([]textrec.Fragment, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.calls++
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.recognize != nil {
		return f.recognize(path)
	}
	return []textrec.Fragment{{Text: "HELLO", Kind: library.KindFullText, Confidence: 0.9}}, nil
}

func (f *fakeEngine) Ready(context.Context) error { return nil }

func TestRecognizerAnnotatesAllItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TextRecognition.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 5, 0)

	engine := &fakeEngine{recognize: func(path string) ([]textrec.Fragment, error) {
		return []textrec.Fragment{
			{Text: "STOP", Kind: library.KindFullText, Confidence: 0.98},
			{Text: "STOP", Kind: library.KindLine, Confidence: 0.96,
				Box: &library.BoundingBox{Left: 1, Top: 2, Right: 30, Bottom: 12}},
			{Text: "", Kind: library.KindElement, Confidence: 0.5},
		}, nil
	}}
	recognizer := textrec.NewRecognizer(cfg, store, engine, nil, nil)
	if err := recognizer.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	ctx := context.Background()
	missing, err := store.URIsMissingText(ctx)
	if err != nil {
		t.Fatalf("missing text: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("items left unannotated: %v", missing)
	}

	annotations, err := store.AnnotationsForURI(ctx, "media://items/000")
	if err != nil {
		t.Fatalf("annotations: %v", err)
	}
	// Empty fragments are dropped.
	if len(annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(annotations))
	}

	status, err := store.StageStatusByName(ctx, stage.NameTextRecognition)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != library.StageCompleted || status.ProcessedItems != 5 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRecognizerSerializesEngineCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TextRecognition.Enabled = true
	cfg.TextRecognition.Parallelism = 8
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 20, 0)

	engine := &fakeEngine{}
	recognizer := textrec.NewRecognizer(cfg, store, engine, nil, nil)
	if err := recognizer.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if engine.maxSeen != 1 {
		t.Fatalf("engine saw %d concurrent calls", engine.maxSeen)
	}
}

func TestRecognizerRerunKeepsCompletedCounters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TextRecognition.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 5, 0)

	engine := &fakeEngine{}
	recognizer := textrec.NewRecognizer(cfg, store, engine, nil, nil)
	ctx := context.Background()
	if err := recognizer.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := recognizer.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	status, err := store.StageStatusByName(ctx, stage.NameTextRecognition)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status == nil || status.Status != library.StageCompleted ||
		status.ProcessedItems != 5 || status.TotalItems != 5 {
		t.Fatalf("rerun rewrote the counters: %+v", status)
	}
}

func TestRecognizerDisabledDoesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TextRecognition.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 2, 0)

	engine := &fakeEngine{}
	recognizer := textrec.NewRecognizer(cfg, store, engine, nil, nil)
	if err := recognizer.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("engine called while disabled: %d", engine.calls)
	}

	status, err := store.StageStatusByName(context.Background(), stage.NameTextRecognition)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != nil {
		t.Fatalf("disabled stage recorded status: %+v", status)
	}
}

func TestRecognizerIsolatesItemFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TextRecognition.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 3, 0)

	engine := &fakeEngine{recognize: func(path string) ([]textrec.Fragment, error) {
		if path == "/library/img-001.jpg" {
			return nil, errors.New("decoder crash")
		}
		return []textrec.Fragment{{Text: "ok", Confidence: 0.9}}, nil
	}}
	recognizer := textrec.NewRecognizer(cfg, store, engine, nil, nil)
	if err := recognizer.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	missing, err := store.URIsMissingText(context.Background())
	if err != nil {
		t.Fatalf("missing text: %v", err)
	}
	if len(missing) != 1 || missing[0] != "media://items/001" {
		t.Fatalf("unexpected remaining work: %v", missing)
	}
}

func TestRecognizerUsesCacheAcrossRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TextRecognition.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)
	items := testsupport.SeedItems(t, store, 2, 0)

	engine := &fakeEngine{}
	recognizer := textrec.NewRecognizer(cfg, store, engine, nil, nil)
	ctx := context.Background()
	if err := recognizer.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCalls := engine.calls

	// Clearing one item's annotations puts it back in the work list; the
	// second run serves it from the cache instead of the engine.
	if _, err := store.DeleteTextAnnotations(ctx, items[0].URI); err != nil {
		t.Fatalf("delete annotations: %v", err)
	}
	if err := recognizer.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if engine.calls != firstCalls {
		t.Fatalf("cache miss on rerun: %d calls vs %d", engine.calls, firstCalls)
	}

	missing, err := store.URIsMissingText(ctx)
	if err != nil {
		t.Fatalf("missing text: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("rerun left work behind: %v", missing)
	}
}
