package testsupport

import (
	"context"
	"testing"

	"docket/internal/config"
	"docket/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDocument inserts a queued document for tests using the provided store.
func NewDocument(t testing.TB, store *queue.Store, filename, hash string) *queue.Document {
	t.Helper()

	doc := &queue.Document{
		OriginalFilename: filename,
		ContentHash:      hash,
		MimeType:         "application/pdf",
		SizeBytes:        1024,
		Status:           queue.StatusQueued,
	}
	if err := store.Insert(context.Background(), doc); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return doc
}
