package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/testsupport"
)

type fakeRunner struct {
	mu          sync.Mutex
	nativeText  string
	nativeErr   error
	renderPages int
	renderErr   error
	ocrText     func(page string) string
	ocrErr      error
	commands    []string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.commands = append(f.commands, name)
	f.mu.Unlock()

	switch {
	case strings.Contains(name, "pdftotext"):
		return []byte(f.nativeText), f.nativeErr
	case strings.Contains(name, "pdftoppm"):
		if f.renderErr != nil {
			return nil, f.renderErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= f.renderPages; i++ {
			page := fmt.Sprintf("%s-%d.png", prefix, i)
			if err := os.WriteFile(page, []byte("png"), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case strings.Contains(name, "tesseract"):
		if f.ocrErr != nil {
			return nil, f.ocrErr
		}
		page := args[0]
		if f.ocrText != nil {
			return []byte(f.ocrText(page)), nil
		}
		return []byte("recognized text"), nil
	default:
		return nil, fmt.Errorf("unexpected command %s", name)
	}
}

func (f *fakeRunner) ran(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cmd := range f.commands {
		if cmd == name {
			return true
		}
	}
	return false
}

func newTestExtractor(t *testing.T, runner *fakeRunner) (*Extractor, *queue.Document) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := newExtractor(cfg, store, logging.NewNop(), runner)
	extractor.pageCount = func(string) (int, error) { return 3, nil }

	stored := filepath.Join(cfg.DocumentsDir(), "doc.pdf")
	testsupport.WriteFile(t, stored, 512)
	doc := &queue.Document{
		ID:               "doc-1",
		OriginalFilename: "2024_tax-return.pdf",
		StoredPath:       stored,
		MimeType:         "application/pdf",
		Status:           queue.StatusExtracting,
	}
	return extractor, doc
}

func TestExtractorUsesNativeTextAboveThreshold(t *testing.T) {
	runner := &fakeRunner{
		nativeText: strings.Repeat("invoice line content here\n", 10),
	}
	extractor, doc := newTestExtractor(t, runner)

	if err := extractor.Prepare(context.Background(), doc); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := extractor.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if doc.ExtractionMethod != queue.ExtractionNative {
		t.Fatalf("expected native extraction, got %s", doc.ExtractionMethod)
	}
	if doc.PageCount != 3 {
		t.Fatalf("expected page count 3, got %d", doc.PageCount)
	}
	if !strings.Contains(doc.ExtractedText, "invoice line content") {
		t.Fatalf("extracted text missing content: %q", doc.ExtractedText)
	}
	if runner.ran("tesseract") {
		t.Fatal("OCR should not run when native text is sufficient")
	}
	if doc.Title != "2024 tax return" {
		t.Fatalf("unexpected derived title %q", doc.Title)
	}
}

func TestExtractorFallsBackToOCR(t *testing.T) {
	runner := &fakeRunner{
		nativeText:  "stub",
		renderPages: 2,
		ocrText: func(page string) string {
			return "page text from " + filepath.Base(page)
		},
	}
	extractor, doc := newTestExtractor(t, runner)

	if err := extractor.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if doc.ExtractionMethod != queue.ExtractionOCR {
		t.Fatalf("expected OCR extraction, got %s", doc.ExtractionMethod)
	}
	if !runner.ran("tesseract") {
		t.Fatal("expected tesseract to run")
	}
	pages := strings.Split(doc.ExtractedText, "\f")
	if len(pages) != 2 {
		t.Fatalf("expected 2 page sections, got %d: %q", len(pages), doc.ExtractedText)
	}
	if !strings.Contains(pages[0], "page-1.png") || !strings.Contains(pages[1], "page-2.png") {
		t.Fatalf("pages out of order: %q", doc.ExtractedText)
	}
}

func TestExtractorRecognizesImagesDirectly(t *testing.T) {
	runner := &fakeRunner{}
	extractor, doc := newTestExtractor(t, runner)
	doc.MimeType = "image/png"
	doc.StoredPath = strings.TrimSuffix(doc.StoredPath, ".pdf") + ".png"
	testsupport.WriteFile(t, doc.StoredPath, 128)

	if err := extractor.Execute(context.Background(), doc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if doc.ExtractionMethod != queue.ExtractionOCR {
		t.Fatalf("expected OCR extraction, got %s", doc.ExtractionMethod)
	}
	if doc.PageCount != 1 {
		t.Fatalf("expected single page, got %d", doc.PageCount)
	}
	if runner.ran("pdftoppm") {
		t.Fatal("image documents should not be rendered with pdftoppm")
	}
}

func TestExtractorFailsPermanentlyOnEmptyText(t *testing.T) {
	runner := &fakeRunner{
		nativeText:  "",
		renderPages: 1,
		ocrText:     func(string) string { return "   \n  " },
	}
	extractor, doc := newTestExtractor(t, runner)

	err := extractor.Execute(context.Background(), doc)
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if services.Classify(err) != services.ClassPermanent {
		t.Fatalf("empty text must not be retried, classified %s", services.Classify(err))
	}
	if doc.ExtractionMethod != queue.ExtractionOCR {
		t.Fatalf("method should still be recorded, got %s", doc.ExtractionMethod)
	}
}

func TestExtractorClassifiesRenderFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nonzero exit is permanent", err: fmt.Errorf("pdftoppm: %w: syntax error", fakeExitError()), want: services.ErrPermanent},
		{name: "missing binary is retryable", err: fmt.Errorf("pdftoppm: %w", exec.ErrNotFound), want: services.ErrExternalTool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{nativeText: "", renderErr: tc.err}
			extractor, doc := newTestExtractor(t, runner)

			err := extractor.Execute(context.Background(), doc)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// fakeExitError produces a real *exec.ExitError by running a command that
// exits nonzero.
func fakeExitError() error {
	err := exec.Command("sh", "-c", "exit 3").Run()
	if err == nil {
		panic("expected nonzero exit")
	}
	return err
}

func TestExtractorRejectsUnsupportedType(t *testing.T) {
	runner := &fakeRunner{}
	extractor, doc := newTestExtractor(t, runner)
	doc.MimeType = "application/zip"
	doc.StoredPath = strings.TrimSuffix(doc.StoredPath, ".pdf") + ".zip"
	testsupport.WriteFile(t, doc.StoredPath, 128)

	err := extractor.Execute(context.Background(), doc)
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestExtractorPrepareRequiresStoredFile(t *testing.T) {
	runner := &fakeRunner{}
	extractor, doc := newTestExtractor(t, runner)
	doc.StoredPath = filepath.Join(t.TempDir(), "missing.pdf")

	err := extractor.Prepare(context.Background(), doc)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024_tax-return.pdf", "2024 tax return"},
		{"scan.png", "scan"},
		{"Invoice   final.PDF", "Invoice final"},
	}
	for _, tc := range tests {
		if got := titleFromFilename(tc.in); got != tc.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderedPagesNumericOrder(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "page")
	for _, n := range []int{10, 2, 1} {
		if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	pages, err := renderedPages(prefix)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"page-1.png", "page-2.png", "page-10.png"}
	for i, page := range pages {
		if filepath.Base(page) != want[i] {
			t.Fatalf("page order %v, want %v", pages, want)
		}
	}
}
