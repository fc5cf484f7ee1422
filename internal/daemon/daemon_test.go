package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docket/internal/daemon"
	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/stage"
	"docket/internal/testsupport"
	"docket/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Document) error { return nil }
func (noopStage) Execute(context.Context, *queue.Document) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func newTestDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{
		Extractor:   noopStage{},
		Embedder:    noopStage{},
		Classifier:  noopStage{},
		Thumbnailer: noopStage{},
	})
	d, err := daemon.New(cfg, store, logger, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" || status.QueueDBPath == "" {
		t.Fatalf("expected lock and database paths, got %#v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonResetsInterruptedDocumentsOnStart(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	doc := testsupport.NewDocument(t, store, "interrupted.pdf", "hash-interrupted")
	doc.Status = queue.StatusExtracting
	if err := store.Update(ctx, doc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := d.Start(startCtx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	// Startup recovery rolls the document back to queued, after which the
	// noop stages carry it to completion.
	deadline := time.Now().Add(10 * time.Second)
	for {
		updated, err := store.GetByID(ctx, doc.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if updated.Status == queue.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("document not recovered and processed, status %s", updated.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestDaemonAddFile(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "statement.pdf")
	if err := os.WriteFile(source, []byte("pdf data"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	doc, err := d.AddFile(ctx, source)
	if err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if doc.Status != queue.StatusQueued {
		t.Fatalf("expected queued document, got %s", doc.Status)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("AddFile must not consume the source file: %v", err)
	}
	if _, err := os.Stat(doc.StoredPath); err != nil {
		t.Fatalf("expected stored file at %s: %v", doc.StoredPath, err)
	}

	stored, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.OriginalFilename != "statement.pdf" {
		t.Fatalf("unexpected original filename %q", stored.OriginalFilename)
	}
}

func TestDaemonAddFileRejectsDirectory(t *testing.T) {
	d, _ := newTestDaemon(t)

	if _, err := d.AddFile(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected directory source to be rejected")
	}
}
