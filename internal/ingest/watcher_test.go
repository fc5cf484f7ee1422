package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/testsupport"
)

type recordingIngest struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingIngest) ingest(_ context.Context, path string) (*queue.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.paths = append(r.paths, path)
	return &queue.Document{ID: "doc"}, nil
}

func (r *recordingIngest) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]string, len(r.paths))
	copy(cp, r.paths)
	return cp
}

func TestWatcherWaitsForStableSize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := &recordingIngest{}
	w := newWatcher(cfg, logging.NewNop(), rec.ingest)
	w.stabilityDelay = 50 * time.Millisecond
	w.ctx = context.Background()

	path := filepath.Join(cfg.Paths.InboxDir, "growing.pdf")
	testsupport.WriteFile(t, path, 100)

	// First sighting only records the size.
	w.poll()
	if got := rec.seen(); len(got) != 0 {
		t.Fatalf("expected no ingest on first sighting, got %v", got)
	}

	// File grew; the stability clock resets.
	testsupport.WriteFile(t, path, 200)
	w.poll()
	if got := rec.seen(); len(got) != 0 {
		t.Fatalf("expected no ingest while file is growing, got %v", got)
	}

	time.Sleep(60 * time.Millisecond)
	w.poll()
	got := rec.seen()
	if len(got) != 1 || got[0] != path {
		t.Fatalf("expected ingest of %s, got %v", path, got)
	}
}

func TestWatcherIgnoresUnsupportedExtensions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAllowedExtensions(".pdf"))
	rec := &recordingIngest{}
	w := newWatcher(cfg, logging.NewNop(), rec.ingest)
	w.stabilityDelay = 0
	w.ctx = context.Background()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "notes.txt"), 64)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "scan.pdf"), 64)

	w.poll()
	time.Sleep(5 * time.Millisecond)
	w.poll()

	got := rec.seen()
	if len(got) != 1 {
		t.Fatalf("expected exactly one ingest, got %v", got)
	}
	if filepath.Base(got[0]) != "scan.pdf" {
		t.Fatalf("expected scan.pdf, got %s", got[0])
	}
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := &recordingIngest{}
	w := newWatcher(cfg, logging.NewNop(), rec.ingest)
	w.stabilityDelay = 0
	w.ctx = context.Background()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, ".partial.pdf"), 64)

	w.poll()
	time.Sleep(5 * time.Millisecond)
	w.poll()

	if got := rec.seen(); len(got) != 0 {
		t.Fatalf("expected hidden file to be ignored, got %v", got)
	}
}

func TestWatcherDoesNotRetryRejectedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := 0
	w := newWatcher(cfg, logging.NewNop(), func(context.Context, string) (*queue.Document, error) {
		calls++
		return nil, fmt.Errorf("%w: empty file", ErrFileRejected)
	})
	w.stabilityDelay = 0
	w.ctx = context.Background()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "empty.pdf"), 1)

	w.poll()
	time.Sleep(5 * time.Millisecond)
	w.poll()
	w.poll()

	if calls != 1 {
		t.Fatalf("expected exactly one intake attempt for rejected file, got %d", calls)
	}
}

func TestWatcherRetriesTransientFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	calls := 0
	w := newWatcher(cfg, logging.NewNop(), func(context.Context, string) (*queue.Document, error) {
		calls++
		return nil, fmt.Errorf("database locked")
	})
	w.stabilityDelay = 0
	w.ctx = context.Background()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "retry.pdf"), 64)

	w.poll()
	time.Sleep(5 * time.Millisecond)
	w.poll()
	time.Sleep(5 * time.Millisecond)
	w.poll()

	if calls < 2 {
		t.Fatalf("expected transient failure to be retried, got %d attempts", calls)
	}
}

func TestWatcherForgetsVanishedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := &recordingIngest{}
	w := newWatcher(cfg, logging.NewNop(), rec.ingest)
	w.stabilityDelay = time.Hour
	w.ctx = context.Background()

	path := filepath.Join(cfg.Paths.InboxDir, "fleeting.pdf")
	testsupport.WriteFile(t, path, 64)

	w.poll()
	if len(w.pending) != 1 {
		t.Fatalf("expected one pending file, got %d", len(w.pending))
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.poll()
	if len(w.pending) != 0 {
		t.Fatalf("expected vanished file to be forgotten, got %d pending", len(w.pending))
	}
}

func TestWatcherStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := &recordingIngest{}
	w := newWatcher(cfg, logging.NewNop(), rec.ingest)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected error starting twice")
	}
	w.Stop()
	w.Stop()
}
