package main

import (
	"strings"
	"testing"
	"time"

	"docket/internal/ipc"
	"docket/internal/queue"
)

func TestBuildQueueStatusRowsOrdersByPipeline(t *testing.T) {
	stats := map[string]int{
		string(queue.StatusCompleted): 3,
		string(queue.StatusQueued):    1,
		string(queue.StatusFailed):    2,
		string(queue.StatusEmbedding): 0,
	}
	rows := buildQueueStatusRows(stats)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Queued" || rows[0][1] != "1" {
		t.Fatalf("expected queued first, got %v", rows[0])
	}
	if rows[1][0] != "Completed" {
		t.Fatalf("expected completed before failed, got %v", rows[1])
	}
	if rows[2][0] != "Failed" || rows[2][1] != "2" {
		t.Fatalf("expected failed last, got %v", rows[2])
	}
}

func TestBuildQueueListRows(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	docs := []ipc.DocumentSummary{
		{
			ID:               "0f2c9a4e-1111-2222-3333-444455556666",
			OriginalFilename: "statement.pdf",
			Status:           string(queue.StatusQueued),
			CreatedAt:        created,
		},
		{
			ID:               "abcdef12-7777-8888-9999-aaaabbbbcccc",
			Title:            "Electric Bill March",
			OriginalFilename: "scan0001.pdf",
			Status:           string(queue.StatusCompleted),
			CreatedAt:        created,
			NeedsReview:      true,
			ReviewReason:     "classification uncertain",
		},
	}
	rows := buildQueueListRows(docs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "0f2c9a4e" {
		t.Fatalf("expected short id, got %q", rows[0][0])
	}
	if rows[0][1] != "statement.pdf" {
		t.Fatalf("expected filename fallback title, got %q", rows[0][1])
	}
	if rows[0][4] != "" {
		t.Fatalf("expected empty review cell, got %q", rows[0][4])
	}
	if rows[1][1] != "Electric Bill March" {
		t.Fatalf("expected explicit title, got %q", rows[1][1])
	}
	if rows[1][4] != "classification uncertain" {
		t.Fatalf("expected review reason, got %q", rows[1][4])
	}
}

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("short", 10); got != "short" {
		t.Fatalf("expected unchanged value, got %q", got)
	}
	got := truncateCell("a very long document title that keeps going", 20)
	if len([]rune(got)) != 20 {
		t.Fatalf("expected 20 runes, got %d (%q)", len([]rune(got)), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("expected short input unchanged, got %q", got)
	}
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("expected 8-char prefix, got %q", got)
	}
}

func TestFormatByteSize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := formatByteSize(tc.size); got != tc.want {
			t.Errorf("formatByteSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestWriteDocumentDetail(t *testing.T) {
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	detail := &documentDetail{
		Document: ipc.DocumentSummary{
			ID:               "doc-123",
			OriginalFilename: "invoice.pdf",
			Title:            "Invoice 42",
			Status:           string(queue.StatusCompleted),
			MimeType:         "application/pdf",
			SizeBytes:        4096,
			PageCount:        3,
			ExtractionMethod: "native",
			NeedsReview:      true,
			ReviewReason:     "low classification confidence",
			CreatedAt:        created,
			UpdatedAt:        created,
		},
		Tags: []ipc.LabelSummary{
			{ID: 1, Slug: "utilities", Name: "Utilities"},
			{ID: 2, Slug: "2026", Name: "2026"},
		},
		History: []ipc.HistoryEntry{
			{Stage: "extraction", Outcome: "success", Attempt: 1, CreatedAt: created},
			{Stage: "classification", Outcome: "degraded", Attempt: 1, Message: "fallback applied", CreatedAt: created},
		},
	}

	var out strings.Builder
	writeDocumentDetail(&out, detail)
	text := out.String()

	for _, want := range []string{
		"Document doc-123",
		"invoice.pdf",
		"Invoice 42",
		"Completed",
		"4.0 KiB",
		"native",
		"low classification confidence",
		"Utilities, 2026",
		"History:",
		"extraction",
		"fallback applied",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("detail output missing %q:\n%s", want, text)
		}
	}
}
