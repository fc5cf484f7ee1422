package workflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/stage"
	"docket/internal/testsupport"
	"docket/internal/workflow"
)

type scriptedStage struct {
	name    string
	execute func(ctx context.Context, doc *queue.Document) error
}

func (s scriptedStage) Prepare(context.Context, *queue.Document) error { return nil }

func (s scriptedStage) Execute(ctx context.Context, doc *queue.Document) error {
	if s.execute == nil {
		return nil
	}
	return s.execute(ctx, doc)
}

func (s scriptedStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func okStage(name string) scriptedStage {
	return scriptedStage{name: name}
}

func newManager(t *testing.T, set workflow.StageSet) (*workflow.Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryBaseDelay = 1
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set)
	return mgr, store
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("manager start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		mgr.Stop()
	})
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Document {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if doc != nil && doc.Status == want {
			return doc
		}
		time.Sleep(50 * time.Millisecond)
	}
	doc, _ := store.GetByID(context.Background(), id)
	t.Fatalf("document %s never reached %s (last seen %+v)", id, want, doc)
	return nil
}

func TestManagerRunsDocumentThroughAllStages(t *testing.T) {
	extractor := scriptedStage{
		name: "extractor",
		execute: func(_ context.Context, doc *queue.Document) error {
			doc.ExtractedText = "invoice body"
			return nil
		},
	}
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   extractor,
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	startManager(t, mgr)

	doc := testsupport.NewDocument(t, store, "full.pdf", "hash-full")
	final := waitForStatus(t, store, doc.ID, queue.StatusCompleted)
	if final.ErrorMessage != "" {
		t.Fatalf("expected no error message, got %q", final.ErrorMessage)
	}
	if final.ExtractedText == "" {
		t.Fatal("completed document must carry extracted text")
	}

	history, err := store.HistoryForDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("HistoryForDocument: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(history))
	}
	for _, entry := range history {
		if entry.Outcome != queue.OutcomeSuccess {
			t.Fatalf("expected success outcomes, got %+v", entry)
		}
	}
}

func TestManagerFailsDocumentOnPermanentError(t *testing.T) {
	failing := scriptedStage{
		name: "extractor",
		execute: func(context.Context, *queue.Document) error {
			return services.Wrap(services.ErrPermanent, "extraction", "read", "file is corrupt", nil)
		},
	}
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   failing,
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	startManager(t, mgr)

	doc := testsupport.NewDocument(t, store, "corrupt.pdf", "hash-corrupt")
	final := waitForStatus(t, store, doc.ID, queue.StatusFailed)
	if final.ErrorMessage == "" {
		t.Fatal("expected error message on failed document")
	}

	history, err := store.HistoryForDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("HistoryForDocument: %v", err)
	}
	if len(history) != 1 || history[0].Outcome != queue.OutcomeFailure {
		t.Fatalf("expected single failure entry, got %+v", history)
	}
}

func TestManagerRetriesTransientError(t *testing.T) {
	var calls atomic.Int32
	flaky := scriptedStage{
		name: "extractor",
		execute: func(context.Context, *queue.Document) error {
			if calls.Add(1) == 1 {
				return services.Wrap(services.ErrTransient, "extraction", "convert", "tool busy", nil)
			}
			return nil
		},
	}
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   flaky,
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	startManager(t, mgr)

	doc := testsupport.NewDocument(t, store, "flaky.pdf", "hash-flaky")
	final := waitForStatus(t, store, doc.ID, queue.StatusCompleted)
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 extraction attempts, got %d", got)
	}
	if final.ErrorMessage != "" {
		t.Fatalf("expected cleared error after retry, got %q", final.ErrorMessage)
	}
}

func TestManagerDegradedStageAdvances(t *testing.T) {
	degraded := scriptedStage{
		name: "thumbnailer",
		execute: func(context.Context, *queue.Document) error {
			return services.Wrap(services.ErrDegraded, "thumbnail", "render", "pdftoppm unavailable", nil)
		},
	}
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   okStage("extractor"),
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: degraded,
	})
	startManager(t, mgr)

	doc := testsupport.NewDocument(t, store, "nothumb.pdf", "hash-nothumb")
	final := waitForStatus(t, store, doc.ID, queue.StatusCompleted)
	if final.ThumbnailPath != "" {
		t.Fatalf("expected no thumbnail path, got %q", final.ThumbnailPath)
	}

	history, err := store.HistoryForDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("HistoryForDocument: %v", err)
	}
	var sawDegraded bool
	for _, entry := range history {
		if entry.Stage == "thumbnailer" && entry.Outcome == queue.OutcomeDegraded {
			sawDegraded = true
		}
	}
	if !sawDegraded {
		t.Fatalf("expected degraded thumbnailer history entry, got %+v", history)
	}
}

func TestManagerStatusSummary(t *testing.T) {
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   okStage("extractor"),
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("expected manager not running before start")
	}
	if len(summary.StageHealth) != 4 {
		t.Fatalf("expected 4 stage health entries, got %d", len(summary.StageHealth))
	}

	testsupport.NewDocument(t, store, "stat.pdf", "hash-stat")
	summary = mgr.Status(context.Background())
	if summary.QueueStats[queue.StatusQueued] != 1 {
		t.Fatalf("expected queue stats to report queued document, got %v", summary.QueueStats)
	}
}

func TestManagerFailsDocumentWithEmptyExtractedText(t *testing.T) {
	emptyExtractor := scriptedStage{
		name: "extractor",
		execute: func(_ context.Context, doc *queue.Document) error {
			doc.ExtractedText = ""
			return services.Wrap(services.ErrPermanent, "extraction", "collect text",
				"No recognizable text in document; nothing downstream can process it", nil)
		},
	}
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   emptyExtractor,
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	startManager(t, mgr)

	doc := testsupport.NewDocument(t, store, "blank.pdf", "hash-blank")
	final := waitForStatus(t, store, doc.ID, queue.StatusFailed)
	if final.ExtractedText != "" {
		t.Fatalf("expected no extracted text, got %q", final.ExtractedText)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected error message on failed document")
	}

	history, err := store.HistoryForDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("HistoryForDocument: %v", err)
	}
	if len(history) != 1 || history[0].Outcome != queue.OutcomeFailure {
		t.Fatalf("expected single failure entry without retries, got %+v", history)
	}
}

func TestManagerPublishesStatusTransitions(t *testing.T) {
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   okStage("extractor"),
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})

	type transition struct {
		from, to queue.Status
	}
	var (
		mu   sync.Mutex
		seen []transition
	)
	mgr.OnStatusChange(func(_ string, from, to queue.Status) {
		mu.Lock()
		seen = append(seen, transition{from: from, to: to})
		mu.Unlock()
	})
	startManager(t, mgr)

	doc := testsupport.NewDocument(t, store, "observed.pdf", "hash-observed")
	waitForStatus(t, store, doc.ID, queue.StatusCompleted)

	// The row is written before the listener fires, so give the final
	// callback a moment to land.
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		if len(seen) >= 8 || time.Now().After(deadline) {
			break
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	defer mu.Unlock()
	if len(seen) != 8 {
		t.Fatalf("expected 8 transitions for 4 stages, got %d: %+v", len(seen), seen)
	}
	if seen[0].from != queue.StatusQueued || seen[0].to != queue.StatusExtracting {
		t.Fatalf("unexpected first transition %+v", seen[0])
	}
	if last := seen[len(seen)-1]; last.to != queue.StatusCompleted {
		t.Fatalf("unexpected final transition %+v", last)
	}
	for _, tr := range seen {
		if tr.from == tr.to {
			t.Fatalf("self transition published: %+v", tr)
		}
	}
}

func TestManagerReprocessRequiresTerminalStatus(t *testing.T) {
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   okStage("extractor"),
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	ctx := context.Background()

	doc := testsupport.NewDocument(t, store, "midway.pdf", "hash-midway")
	doc.Status = queue.StatusExtracted
	doc.ExtractedText = "kept"
	if err := store.Update(ctx, doc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	err := mgr.Reprocess(ctx, doc.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for mid-pipeline document, got %v", err)
	}

	unchanged, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if unchanged.Status != queue.StatusExtracted || unchanged.ExtractedText != "kept" {
		t.Fatalf("document must be untouched after rejected reprocess, got %+v", unchanged)
	}

	if err := mgr.Reprocess(ctx, "no-such-id"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestManagerReprocessQueuedBehindActiveStage(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	blocking := scriptedStage{
		name: "extractor",
		execute: func(_ context.Context, doc *queue.Document) error {
			doc.ExtractedText = "body"
			if runs.Add(1) == 1 {
				close(started)
				<-release
			}
			return nil
		},
	}
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   blocking,
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	startManager(t, mgr)
	ctx := context.Background()

	doc := testsupport.NewDocument(t, store, "busy.pdf", "hash-busy")
	<-started

	if err := mgr.Reprocess(ctx, doc.ID); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	flagged, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !flagged.ReprocessRequested {
		t.Fatal("expected reprocess request to be recorded while the stage runs")
	}
	if flagged.Status != queue.StatusExtracting {
		t.Fatalf("active stage must keep running, got status %s", flagged.Status)
	}

	close(release)
	final := waitForStatus(t, store, doc.ID, queue.StatusCompleted)
	if got := runs.Load(); got < 2 {
		t.Fatalf("expected extraction to run again after the deferred reset, got %d runs", got)
	}
	if final.ReprocessRequested {
		t.Fatal("reprocess flag must be cleared after the reset is applied")
	}
}

func TestManagerReprocessIdleDocument(t *testing.T) {
	mgr, store := newManager(t, workflow.StageSet{
		Extractor:   okStage("extractor"),
		Embedder:    okStage("embedder"),
		Classifier:  okStage("classifier"),
		Thumbnailer: okStage("thumbnailer"),
	})
	ctx := context.Background()

	doc := testsupport.NewDocument(t, store, "redo.pdf", "hash-redo")
	doc.Status = queue.StatusCompleted
	doc.ExtractedText = "old"
	if err := store.Update(ctx, doc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := mgr.Reprocess(ctx, doc.ID); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	reset, err := store.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reset.Status != queue.StatusQueued || reset.ExtractedText != "" {
		t.Fatalf("expected document reset for reprocess, got %+v", reset)
	}
}
