package testsupport

import (
	"context"
	"fmt"
	"testing"

	"lumen/internal/config"
	"lumen/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedItems inserts n media items with sequential URIs and returns them.
// Items with index < withGPS carry coordinates.
func SeedItems(t testing.TB, store *library.Store, n, withGPS int) []*library.MediaItem {
	t.Helper()

	items := make([]*library.MediaItem, 0, n)
	for i := 0; i < n; i++ {
		item := &library.MediaItem{
			URI:         fmt.Sprintf("media://items/%03d", i),
			Path:        fmt.Sprintf("/library/img-%03d.jpg", i),
			DisplayName: fmt.Sprintf("img-%03d.jpg", i),
			SizeBytes:   1024,
			MimeType:    "image/jpeg",
		}
		if i < withGPS {
			lat, lon := 52.52+float64(i)/1000, 13.405+float64(i)/1000
			item.Latitude = &lat
			item.Longitude = &lon
		}
		items = append(items, item)
	}
	if _, err := store.InsertMediaItems(context.Background(), items); err != nil {
		t.Fatalf("seed items: %v", err)
	}
	return items
}
