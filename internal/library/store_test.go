package library_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lumen/internal/library"
)

func openStore(t *testing.T) *library.Store {
	t.Helper()
	store, err := library.OpenPath(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func insertItems(t *testing.T, store *library.Store, items ...*library.MediaItem) {
	t.Helper()
	if _, err := store.InsertMediaItems(context.Background(), items); err != nil {
		t.Fatalf("insert items: %v", err)
	}
}

func item(uri string) *library.MediaItem {
	return &library.MediaItem{
		URI:         uri,
		Path:        "/library/" + uri + ".jpg",
		DisplayName: uri + ".jpg",
		SizeBytes:   2048,
		MimeType:    "image/jpeg",
	}
}

func geoItem(uri string, lat, lon float64) *library.MediaItem {
	it := item(uri)
	it.Latitude = &lat
	it.Longitude = &lon
	return it
}

func TestInsertMediaItemsFirstWriteWins(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first := item("a")
	first.DisplayName = "original.jpg"
	inserted, err := store.InsertMediaItems(ctx, []*library.MediaItem{first, item("b")})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserts, got %d", inserted)
	}

	dup := item("a")
	dup.DisplayName = "replacement.jpg"
	inserted, err = store.InsertMediaItems(ctx, []*library.MediaItem{dup, item("c")})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 new insert, got %d", inserted)
	}

	got, err := store.GetByURI(ctx, "a")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.DisplayName != "original.jpg" {
		t.Fatalf("duplicate insert overwrote existing row: %q", got.DisplayName)
	}
	count, err := store.CountMediaItems(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 items, got %d", count)
	}
}

func TestInsertMediaItemsDerivesDate(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	withDate := item("dated")
	withDate.TakenAt = time.Date(2023, time.July, 14, 10, 30, 0, 0, time.UTC)
	withDate.AddedAt = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	insertItems(t, store, withDate)

	got, err := store.GetByURI(ctx, "dated")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Year != 2023 || got.Month != 7 || got.Day != 14 {
		t.Fatalf("expected capture date 2023-07-14, got %d-%d-%d", got.Year, got.Month, got.Day)
	}
}

func TestURIsMissingLabelsIsSetDifference(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	insertItems(t, store, item("a"), item("b"), item("c"))

	missing, err := store.URIsMissingLabels(ctx)
	if err != nil {
		t.Fatalf("missing labels: %v", err)
	}
	if len(missing) != 3 {
		t.Fatalf("expected 3 unlabeled uris, got %d", len(missing))
	}

	err = store.ReplaceObjectLabels(ctx, []library.ObjectLabel{
		{URI: "a", Label: "dog", Confidence: 0.92},
		{URI: "a", Label: "grass", Confidence: 0.71},
		{URI: "c", Label: "cat", Confidence: 0.88},
	})
	if err != nil {
		t.Fatalf("replace labels: %v", err)
	}

	missing, err = store.URIsMissingLabels(ctx)
	if err != nil {
		t.Fatalf("missing labels: %v", err)
	}
	if len(missing) != 1 || missing[0] != "b" {
		t.Fatalf("expected only b to remain, got %v", missing)
	}

	labels, err := store.LabelsForURI(ctx, "a")
	if err != nil {
		t.Fatalf("labels for uri: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels for a, got %d", len(labels))
	}
}

func TestURIsMissingTextIsSetDifference(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	insertItems(t, store, item("a"), item("b"))

	err := store.InsertTextAnnotations(ctx, []library.TextAnnotation{
		{URI: "a", Text: "EXIT", Kind: library.KindFullText, Confidence: 0.99},
		{URI: "a", Text: "EXIT", Kind: library.KindLine, Confidence: 0.97,
			Box: &library.BoundingBox{Left: 10, Top: 20, Right: 110, Bottom: 60}},
	})
	if err != nil {
		t.Fatalf("insert annotations: %v", err)
	}

	missing, err := store.URIsMissingText(ctx)
	if err != nil {
		t.Fatalf("missing text: %v", err)
	}
	if len(missing) != 1 || missing[0] != "b" {
		t.Fatalf("expected only b to remain, got %v", missing)
	}

	annotations, err := store.AnnotationsForURI(ctx, "a")
	if err != nil {
		t.Fatalf("annotations for uri: %v", err)
	}
	if len(annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(annotations))
	}
	var boxed int
	for _, a := range annotations {
		if a.Box != nil {
			boxed++
			if a.Box.Right != 110 {
				t.Fatalf("bounding box lost precision: %+v", a.Box)
			}
		}
	}
	if boxed != 1 {
		t.Fatalf("expected exactly one boxed annotation, got %d", boxed)
	}

	deleted, err := store.DeleteTextAnnotations(ctx, "a")
	if err != nil {
		t.Fatalf("delete annotations: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
}

func TestGeocodeRetryCap(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	const retryCap = 3

	insertItems(t, store, geoItem("geo", 52.52, 13.405), item("plain"))

	candidates, err := store.GeocodeCandidates(ctx, retryCap)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].URI != "geo" {
		t.Fatalf("expected only the GPS item as candidate, got %d", len(candidates))
	}

	for attempt := 1; attempt <= retryCap; attempt++ {
		if err := store.RecordLocationFailure(ctx, "geo", retryCap); err != nil {
			t.Fatalf("record failure %d: %v", attempt, err)
		}
		got, err := store.GetByURI(ctx, "geo")
		if err != nil {
			t.Fatalf("get item: %v", err)
		}
		if got.LocationRetryCount != attempt {
			t.Fatalf("attempt %d: retry count %d", attempt, got.LocationRetryCount)
		}
		wantResolved := attempt >= retryCap
		if got.LocationResolved != wantResolved {
			t.Fatalf("attempt %d: resolved=%v, want %v", attempt, got.LocationResolved, wantResolved)
		}
	}

	// Once capped, the item leaves the candidate set for good.
	candidates, err = store.GeocodeCandidates(ctx, retryCap)
	if err != nil {
		t.Fatalf("candidates after cap: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("capped item still a candidate: %d", len(candidates))
	}

	got, err := store.GetByURI(ctx, "geo")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.LocationName != "" {
		t.Fatalf("capped item should have empty place, got %q", got.LocationName)
	}
}

func TestMarkLocationResolved(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	insertItems(t, store, geoItem("geo", 48.8566, 2.3522))

	if err := store.MarkLocationResolved(ctx, "geo", "Rue de Rivoli, Paris, France"); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}

	got, err := store.GetByURI(ctx, "geo")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !got.LocationResolved || got.LocationName != "Rue de Rivoli, Paris, France" {
		t.Fatalf("unexpected state: resolved=%v name=%q", got.LocationResolved, got.LocationName)
	}

	resolved, err := store.CountResolvedLocations(ctx)
	if err != nil {
		t.Fatalf("count resolved: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved location, got %d", resolved)
	}
}

func TestResetUnresolvedLocations(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	const retryCap = 3

	// capped: retries exhausted, stays parked.
	// partial: one failure then marked resolved with an empty place, as a
	//          crash between commit points would leave it. Eligible for reset.
	// done: resolved with a real place, untouched by the sweep.
	insertItems(t, store,
		geoItem("capped", 1, 1),
		geoItem("partial", 2, 2),
		geoItem("done", 3, 3),
	)
	for i := 0; i < retryCap; i++ {
		if err := store.RecordLocationFailure(ctx, "capped", retryCap); err != nil {
			t.Fatalf("cap item: %v", err)
		}
	}
	if err := store.RecordLocationFailure(ctx, "partial", retryCap); err != nil {
		t.Fatalf("fail partial: %v", err)
	}
	if err := store.MarkLocationResolved(ctx, "partial", ""); err != nil {
		t.Fatalf("mark partial: %v", err)
	}
	if err := store.MarkLocationResolved(ctx, "done", "Lisbon, Portugal"); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	reset, err := store.ResetUnresolvedLocations(ctx, retryCap)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset row, got %d", reset)
	}

	candidates, err := store.GeocodeCandidates(ctx, retryCap)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].URI != "partial" {
		t.Fatalf("expected partial back in the candidate set, got %v", candidates)
	}

	done, err := store.GetByURI(ctx, "done")
	if err != nil {
		t.Fatalf("get done: %v", err)
	}
	if !done.LocationResolved || done.LocationName != "Lisbon, Portugal" {
		t.Fatalf("sweep touched a resolved item: %+v", done)
	}
}

func TestStageStatusInvariants(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.BeginStage(ctx, "object_detection", 10, 0); err != nil {
		t.Fatalf("begin stage: %v", err)
	}
	if err := store.AdvanceStage(ctx, "object_detection", 25); err != nil {
		t.Fatalf("advance stage: %v", err)
	}

	status, err := store.StageStatusByName(ctx, "object_detection")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.ProcessedItems != 10 {
		t.Fatalf("processed not clamped to total: %d", status.ProcessedItems)
	}
	if status.Status != library.StageRunning {
		t.Fatalf("expected running, got %s", status.Status)
	}

	if err := store.BeginStage(ctx, "scan", 4, 4); err != nil {
		t.Fatalf("begin scan: %v", err)
	}
	if err := store.CompleteStage(ctx, "scan"); err != nil {
		t.Fatalf("complete scan: %v", err)
	}
	status, err = store.StageStatusByName(ctx, "scan")
	if err != nil {
		t.Fatalf("get scan status: %v", err)
	}
	if status.Status != library.StageCompleted || status.ProcessedItems != status.TotalItems {
		t.Fatalf("completed stage not fully processed: %+v", status)
	}

	if err := store.FailStage(ctx, "object_detection"); err != nil {
		t.Fatalf("fail stage: %v", err)
	}
	all, err := store.AllStageStatuses(ctx)
	if err != nil {
		t.Fatalf("all statuses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 status rows, got %d", len(all))
	}
	if all[0].StageName != "object_detection" || all[0].Status != library.StageFailed {
		t.Fatalf("unexpected first status row: %+v", all[0])
	}
}

func TestStageStatusMissingIsNil(t *testing.T) {
	store := openStore(t)

	status, err := store.StageStatusByName(context.Background(), "never_ran")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil for unknown stage, got %+v", status)
	}
}

func TestSoftDeleteAndPurge(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	insertItems(t, store, item("keep"), item("trash"))

	err := store.ReplaceObjectLabels(ctx, []library.ObjectLabel{{URI: "trash", Label: "tree", Confidence: 0.8}})
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if err := store.SoftDelete(ctx, "trash"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := store.GetByURI(ctx, "trash")
	if err != nil {
		t.Fatalf("get trashed: %v", err)
	}
	if !got.Trashed || got.TrashedAt == nil {
		t.Fatalf("soft delete did not mark row: %+v", got)
	}

	// Cutoff in the past purges nothing.
	purged, err := store.PurgeTrashed(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 0 {
		t.Fatalf("purged fresh trash: %d", purged)
	}

	if err := store.Restore(ctx, "trash"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err = store.GetByURI(ctx, "trash")
	if err != nil {
		t.Fatalf("get restored: %v", err)
	}
	if got.Trashed || got.TrashedAt != nil {
		t.Fatalf("restore did not clear trash state: %+v", got)
	}

	if err := store.SoftDelete(ctx, "trash"); err != nil {
		t.Fatalf("soft delete again: %v", err)
	}
	purged, err = store.PurgeTrashed(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}

	// Cascade removed the derived rows too.
	labels, err := store.LabelsForURI(ctx, "trash")
	if err != nil {
		t.Fatalf("labels after purge: %v", err)
	}
	if len(labels) != 0 {
		t.Fatalf("labels survived purge: %v", labels)
	}
	count, err := store.CountMediaItems(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining item, got %d", count)
	}
}

func TestFavoriteAndArchiveFlags(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	insertItems(t, store, item("a"))

	if err := store.SetFavorite(ctx, "a", true); err != nil {
		t.Fatalf("set favorite: %v", err)
	}
	if err := store.SetArchived(ctx, "a", true); err != nil {
		t.Fatalf("set archived: %v", err)
	}

	got, err := store.GetByURI(ctx, "a")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !got.Favorite || !got.Archived {
		t.Fatalf("flags not set: %+v", got)
	}

	if err := store.SetFavorite(ctx, "a", false); err != nil {
		t.Fatalf("clear favorite: %v", err)
	}
	got, err = store.GetByURI(ctx, "a")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Favorite {
		t.Fatalf("favorite flag not cleared")
	}
}

func TestSchemaVersionMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "library.db")
	store, err := library.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	store.Close()

	// Reopening the same file succeeds while the version matches.
	store, err = library.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	store.Close()
}

func TestKnownURIs(t *testing.T) {
	store := openStore(t)
	insertItems(t, store, item("a"), item("b"))

	known, err := store.KnownURIs(context.Background())
	if err != nil {
		t.Fatalf("known uris: %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("expected 2 known uris, got %d", len(known))
	}
	if _, ok := known["a"]; !ok {
		t.Fatalf("missing uri a")
	}
}
