package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docket/internal/daemon"
	"docket/internal/ipc"
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

func TestIPCServerClient(t *testing.T) {
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

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.LogDir, "docket.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if len(status.StageHealth) != 4 {
		t.Fatalf("expected 4 stage health entries, got %d", len(status.StageHealth))
	}

	// Stop processing before seeding documents so noop stages do not advance
	// them mid-assertion.
	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	docA := testsupport.NewDocument(t, store, "a.pdf", "hash-a")
	docB := testsupport.NewDocument(t, store, "b.pdf", "hash-b")
	docB.Status = queue.StatusFailed
	if err := store.Update(ctx, docB); err != nil {
		t.Fatalf("Update docB: %v", err)
	}
	docC := testsupport.NewDocument(t, store, "c.pdf", "hash-c")
	docC.Status = queue.StatusEmbedding
	if err := store.Update(ctx, docC); err != nil {
		t.Fatalf("Update docC: %v", err)
	}

	manualPath := filepath.Join(testsupport.BaseDir(cfg), "Manual Scan.pdf")
	if err := os.WriteFile(manualPath, []byte("pdf data"), 0o644); err != nil {
		t.Fatalf("write manual file: %v", err)
	}
	addResp, err := client.AddFile(manualPath)
	if err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if addResp.Document.Status != string(queue.StatusQueued) {
		t.Fatalf("expected manual document to be queued, got %s", addResp.Document.Status)
	}
	if _, err := os.Stat(manualPath); err != nil {
		t.Fatalf("AddFile must not consume the source file: %v", err)
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Documents) != 4 {
		t.Fatalf("expected 4 documents, got %d", len(listResp.Documents))
	}

	failedResp, err := client.QueueList([]string{string(queue.StatusFailed)})
	if err != nil {
		t.Fatalf("QueueList failed filter: %v", err)
	}
	if len(failedResp.Documents) != 1 || failedResp.Documents[0].ID != docB.ID {
		t.Fatalf("expected failed document %s, got %#v", docB.ID, failedResp.Documents)
	}

	if err := store.AppendHistory(ctx, docA.ID, "extraction", queue.OutcomeSuccess, "native text", 1); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	describeResp, err := client.QueueDescribe(docA.ID)
	if err != nil {
		t.Fatalf("QueueDescribe failed: %v", err)
	}
	if describeResp.Document.ID != docA.ID {
		t.Fatalf("unexpected describe document %s", describeResp.Document.ID)
	}
	if len(describeResp.History) != 1 || describeResp.History[0].Stage != "extraction" {
		t.Fatalf("unexpected history %#v", describeResp.History)
	}

	resetResp, err := client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset failed: %v", err)
	}
	if resetResp.Updated != 1 {
		t.Fatalf("expected 1 document reset, got %d", resetResp.Updated)
	}
	updatedC, err := store.GetByID(ctx, docC.ID)
	if err != nil {
		t.Fatalf("GetByID docC: %v", err)
	}
	if updatedC.Status != queue.StatusExtracted {
		t.Fatalf("expected docC to roll back to extracted, got %s", updatedC.Status)
	}

	retryResp, err := client.QueueRetry(nil)
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 1 {
		t.Fatalf("expected 1 retried document, got %d", retryResp.Updated)
	}

	if _, err := client.QueueReprocess(docA.ID); err == nil {
		t.Fatal("expected reprocess of a queued document to be rejected")
	}

	docA.Status = queue.StatusCompleted
	if err := store.Update(ctx, docA); err != nil {
		t.Fatalf("Update docA: %v", err)
	}
	reprocessResp, err := client.QueueReprocess(docA.ID)
	if err != nil {
		t.Fatalf("QueueReprocess failed: %v", err)
	}
	if !reprocessResp.Accepted {
		t.Fatal("expected reprocess to be accepted")
	}

	healthResp, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if healthResp.Total != 4 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "docket.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp == nil || notifyResp.Message == "" {
		t.Fatalf("expected notification message, got %#v", notifyResp)
	}

	removeResp, err := client.QueueRemove([]string{docB.ID})
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if removeResp.Removed != 1 {
		t.Fatalf("expected 1 document removed, got %d", removeResp.Removed)
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 3 {
		t.Fatalf("expected 3 documents cleared, got %d", clearResp.Removed)
	}

	status2, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status2.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
