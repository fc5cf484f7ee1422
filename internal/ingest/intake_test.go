package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/testsupport"
)

func TestIntakeIngestMovesFileAndInserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	intake := NewIntake(cfg, store, logging.NewNop(), nil)

	src := filepath.Join(cfg.Paths.InboxDir, "invoice.pdf")
	testsupport.WriteFile(t, src, 2048)

	doc, err := intake.Ingest(context.Background(), src)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if doc.ID == "" {
		t.Fatal("expected document ID to be assigned")
	}
	if doc.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %s", doc.Status)
	}
	if doc.OriginalFilename != "invoice.pdf" {
		t.Fatalf("unexpected filename %q", doc.OriginalFilename)
	}
	if doc.ContentHash == "" {
		t.Fatal("expected content hash")
	}
	if doc.MimeType != "application/pdf" {
		t.Fatalf("unexpected mime type %q", doc.MimeType)
	}
	if doc.SizeBytes != 2048 {
		t.Fatalf("unexpected size %d", doc.SizeBytes)
	}
	if doc.NeedsReview {
		t.Fatal("fresh document should not need review")
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected inbox file to be moved, stat err %v", err)
	}
	if !strings.HasPrefix(doc.StoredPath, cfg.DocumentsDir()) {
		t.Fatalf("stored path %q outside documents dir", doc.StoredPath)
	}
	if _, err := os.Stat(doc.StoredPath); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	persisted, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if persisted.ContentHash != doc.ContentHash {
		t.Fatalf("persisted hash mismatch: %q vs %q", persisted.ContentHash, doc.ContentHash)
	}
}

func TestIntakeIngestFlagsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	intake := NewIntake(cfg, store, logging.NewNop(), nil)

	first := filepath.Join(cfg.Paths.InboxDir, "statement.pdf")
	testsupport.WriteFile(t, first, 1024)
	original, err := intake.Ingest(context.Background(), first)
	if err != nil {
		t.Fatalf("Ingest first: %v", err)
	}

	second := filepath.Join(cfg.Paths.InboxDir, "statement-copy.pdf")
	testsupport.WriteFile(t, second, 1024)
	dup, err := intake.Ingest(context.Background(), second)
	if err != nil {
		t.Fatalf("Ingest duplicate: %v", err)
	}

	if !dup.NeedsReview {
		t.Fatal("duplicate should be flagged for review")
	}
	if !strings.Contains(dup.ReviewReason, original.ID) {
		t.Fatalf("review reason %q does not reference original document", dup.ReviewReason)
	}
	if dup.Status != queue.StatusQueued {
		t.Fatalf("duplicate should still be queued, got %s", dup.Status)
	}
}

func TestIntakeIngestRejectsEmptyFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	intake := NewIntake(cfg, store, logging.NewNop(), nil)

	src := filepath.Join(cfg.Paths.InboxDir, "empty.pdf")
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := intake.Ingest(context.Background(), src)
	if !errors.Is(err, ErrFileRejected) {
		t.Fatalf("expected ErrFileRejected, got %v", err)
	}
	if _, statErr := os.Stat(src); statErr != nil {
		t.Fatalf("rejected file should stay in inbox: %v", statErr)
	}
}

func TestIntakeIngestRejectsOversizedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.MaxFileSizeMB = 1
	store := testsupport.MustOpenStore(t, cfg)
	intake := NewIntake(cfg, store, logging.NewNop(), nil)

	src := filepath.Join(cfg.Paths.InboxDir, "huge.pdf")
	testsupport.WriteFile(t, src, 2*1024*1024)

	_, err := intake.Ingest(context.Background(), src)
	if !errors.Is(err, ErrFileRejected) {
		t.Fatalf("expected ErrFileRejected, got %v", err)
	}
}

func TestDetectMIME(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file string
		want string
	}{
		{name: "pdf extension", file: "doc.pdf", want: "application/pdf"},
		{name: "png extension", file: "scan.png", want: "image/png"},
		{name: "jpeg extension", file: "photo.jpg", want: "image/jpeg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
				t.Fatal(err)
			}
			if got := detectMIME(path); got != tc.want {
				t.Fatalf("detectMIME(%s) = %q, want %q", tc.file, got, tc.want)
			}
		})
	}
}
