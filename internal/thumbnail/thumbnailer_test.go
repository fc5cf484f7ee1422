package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/testsupport"
)

type fakeRunner struct {
	err   error
	calls int
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if strings.Contains(name, "pdftoppm") {
		prefix := args[len(args)-1]
		if err := os.WriteFile(prefix+".png", []byte("png"), 0o644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func newTestThumbnailer(t *testing.T, runner *fakeRunner) (*Thumbnailer, *queue.Document) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	thumbnailer := newThumbnailer(cfg, store, logging.NewNop(), runner)
	thumbnailer.trimFirstPage = func(src, dst string) error {
		return fmt.Errorf("trim unavailable in tests")
	}

	stored := filepath.Join(cfg.DocumentsDir(), "doc.pdf")
	testsupport.WriteFile(t, stored, 256)
	doc := &queue.Document{
		ID:         "doc-1",
		StoredPath: stored,
		MimeType:   "application/pdf",
		Status:     queue.StatusThumbnailing,
	}
	return thumbnailer, doc
}

func TestThumbnailerRendersPDF(t *testing.T) {
	runner := &fakeRunner{}
	thumbnailer, doc := newTestThumbnailer(t, runner)

	if err := thumbnailer.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if doc.ThumbnailPath == "" {
		t.Fatal("expected thumbnail path to be set")
	}
	if filepath.Base(doc.ThumbnailPath) != "doc-1.png" {
		t.Fatalf("unexpected thumbnail name %s", doc.ThumbnailPath)
	}
	if _, err := os.Stat(doc.ThumbnailPath); err != nil {
		t.Fatalf("thumbnail file missing: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one render call, got %d", runner.calls)
	}
}

func TestThumbnailerCopiesImages(t *testing.T) {
	runner := &fakeRunner{}
	thumbnailer, doc := newTestThumbnailer(t, runner)
	doc.MimeType = "image/png"
	doc.StoredPath = strings.TrimSuffix(doc.StoredPath, ".pdf") + ".png"
	testsupport.WriteFile(t, doc.StoredPath, 128)

	if err := thumbnailer.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if runner.calls != 0 {
		t.Fatal("image thumbnails should not invoke pdftoppm")
	}
	if _, err := os.Stat(doc.ThumbnailPath); err != nil {
		t.Fatalf("thumbnail file missing: %v", err)
	}
	// Original must remain in place; thumbnails are copies.
	if _, err := os.Stat(doc.StoredPath); err != nil {
		t.Fatalf("stored file should remain: %v", err)
	}
}

func TestThumbnailerDegradesOnRenderFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("pdftoppm crashed")}
	thumbnailer, doc := newTestThumbnailer(t, runner)

	err := thumbnailer.Execute(context.Background(), doc)
	if !services.IsDegraded(err) {
		t.Fatalf("expected degraded error, got %v", err)
	}
	if doc.ThumbnailPath != "" {
		t.Fatalf("thumbnail path should stay empty, got %s", doc.ThumbnailPath)
	}
}

func TestThumbnailerDegradesWithoutStoredFile(t *testing.T) {
	runner := &fakeRunner{}
	thumbnailer, doc := newTestThumbnailer(t, runner)
	doc.StoredPath = ""

	err := thumbnailer.Execute(context.Background(), doc)
	if !services.IsDegraded(err) {
		t.Fatalf("expected degraded error, got %v", err)
	}
}
