package geocode_test

import (
	"context"
	"errors"
	"testing"

	"lumen/internal/geocode"
	"lumen/internal/library"
	"lumen/internal/stage"
	"lumen/internal/testsupport"
)

type fakeClient struct {
	calls   int
	pingErr error
	resolve func(lat, lon float64) (string, error)
}

func (f *fakeClient) ReverseGeocode(_ context.Context, lat, lon float64) (string, error) {
	f.calls++
	if f.resolve != nil {
		return f.resolve(lat, lon)
	}
	return "Somewhere, Earth", nil
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func TestResolverResolvesCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Geocoding.Enabled = true
	cfg.Geocoding.RequestsPerSecond = 1000
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 5, 3)

	client := &fakeClient{}
	resolver := geocode.NewResolver(cfg, store, client, nil, nil)
	if err := resolver.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Only items with coordinates were sent to the service.
	if client.calls != 3 {
		t.Fatalf("expected 3 geocode calls, got %d", client.calls)
	}

	ctx := context.Background()
	resolved, err := store.CountResolvedLocations(ctx)
	if err != nil {
		t.Fatalf("count resolved: %v", err)
	}
	if resolved != 3 {
		t.Fatalf("expected 3 resolved locations, got %d", resolved)
	}

	item, err := store.GetByURI(ctx, "media://items/000")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.LocationName != "Somewhere, Earth" {
		t.Fatalf("unexpected place: %q", item.LocationName)
	}

	status, err := store.StageStatusByName(ctx, stage.NameLocationGeocode)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != library.StageCompleted || status.ProcessedItems != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestResolverSpendsRetryBudgetAndParksItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Geocoding.Enabled = true
	cfg.Geocoding.RequestsPerSecond = 1000
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 1, 1)

	client := &fakeClient{resolve: func(float64, float64) (string, error) {
		return "", errors.New("service error")
	}}
	resolver := geocode.NewResolver(cfg, store, client, nil, nil)

	ctx := context.Background()
	for run := 0; run < cfg.Geocoding.RetryCap; run++ {
		if err := resolver.Run(ctx); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	item, err := store.GetByURI(ctx, "media://items/000")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !item.LocationResolved || item.LocationName != "" {
		t.Fatalf("item not parked after exhausting retries: %+v", item)
	}
	if item.LocationRetryCount != cfg.Geocoding.RetryCap {
		t.Fatalf("unexpected retry count: %d", item.LocationRetryCount)
	}

	// A further run finds no candidates and never calls the service.
	callsBefore := client.calls
	if err := resolver.Run(ctx); err != nil {
		t.Fatalf("post-cap run: %v", err)
	}
	if client.calls != callsBefore {
		t.Fatalf("parked item was retried: %d calls", client.calls)
	}
}

func TestResolverSkipsRunWhenServiceUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Geocoding.Enabled = true
	cfg.Geocoding.RequestsPerSecond = 1000
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 2, 2)

	client := &fakeClient{pingErr: errors.New("no route to host")}
	resolver := geocode.NewResolver(cfg, store, client, nil, nil)
	if err := resolver.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("requests sent while unreachable: %d", client.calls)
	}

	// No retry budget was spent.
	item, err := store.GetByURI(context.Background(), "media://items/000")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.LocationRetryCount != 0 || item.LocationResolved {
		t.Fatalf("budget spent during outage: %+v", item)
	}
}

func TestResolverDisabledDoesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Geocoding.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 1, 1)

	client := &fakeClient{}
	resolver := geocode.NewResolver(cfg, store, client, nil, nil)
	if err := resolver.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("disabled stage called the service: %d", client.calls)
	}
}

func TestResolverRecoverRequeuesInterruptedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Geocoding.Enabled = true
	cfg.Geocoding.RequestsPerSecond = 1000
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 2, 2)

	ctx := context.Background()
	// An interrupted run can leave an item resolved with an empty place.
	if err := store.MarkLocationResolved(ctx, "media://items/000", ""); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := store.MarkLocationResolved(ctx, "media://items/001", "Kyoto, Japan"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	client := &fakeClient{}
	resolver := geocode.NewResolver(cfg, store, client, nil, nil)

	reset, err := resolver.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 recovered item, got %d", reset)
	}

	if err := resolver.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 geocode call after recovery, got %d", client.calls)
	}

	item, err := store.GetByURI(ctx, "media://items/000")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.LocationName != "Somewhere, Earth" {
		t.Fatalf("recovered item not re-resolved: %q", item.LocationName)
	}
	untouched, err := store.GetByURI(ctx, "media://items/001")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if untouched.LocationName != "Kyoto, Japan" {
		t.Fatalf("recovery touched a resolved item: %q", untouched.LocationName)
	}
}
