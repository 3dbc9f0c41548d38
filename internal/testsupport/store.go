package testsupport

import (
	"context"
	"testing"

	"shelver/internal/config"
	"shelver/internal/tracking"
)

// MustOpenStore opens a tracking.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tracking.Store {
	t.Helper()

	store, err := tracking.Open(cfg)
	if err != nil {
		t.Fatalf("tracking.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustTrack records an item at relativePath in the given state, bypassing the
// transition table.
func MustTrack(t testing.TB, store *tracking.Store, relativePath string, state tracking.State) *tracking.Item {
	t.Helper()

	identity, err := tracking.IdentityFor(relativePath)
	if err != nil {
		t.Fatalf("IdentityFor(%q): %v", relativePath, err)
	}
	item, err := store.Upsert(context.Background(), identity, relativePath, state)
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return item
}

// MustGet fetches an item by relative path and fails the test when absent.
func MustGet(t testing.TB, store *tracking.Store, relativePath string) *tracking.Item {
	t.Helper()

	item, err := store.GetByPath(context.Background(), relativePath)
	if err != nil {
		t.Fatalf("store.GetByPath(%q): %v", relativePath, err)
	}
	if item == nil {
		t.Fatalf("expected item %q to be tracked", relativePath)
	}
	return item
}
