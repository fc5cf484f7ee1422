package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"docket/internal/config"
	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/stage"
)

// Extractor pulls text out of ingested documents. PDFs go through native
// text extraction first and fall back to OCR when the embedded text layer is
// too thin; image documents are recognized directly.
type Extractor struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	runner commandRunner

	pageCount func(path string) (int, error)
}

// NewExtractor constructs the extraction stage handler using default dependencies.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	return newExtractor(cfg, store, logger, execCommandRunner{})
}

func newExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger, runner commandRunner) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "extractor"))
	}
	return &Extractor{
		cfg:    cfg,
		store:  store,
		logger: stageLogger,
		runner: runner,
		pageCount: func(path string) (int, error) {
			return api.PageCountFile(path)
		},
	}
}

func (e *Extractor) Prepare(ctx context.Context, doc *queue.Document) error {
	logger := logging.WithContext(ctx, e.logger)
	doc.InitProgress("Extracting", "Preparing text extraction")
	if strings.TrimSpace(doc.StoredPath) == "" {
		return services.Wrap(services.ErrValidation, "extraction", "validate inputs",
			"Document has no stored file; re-ingest the original", nil)
	}
	if _, err := os.Stat(doc.StoredPath); err != nil {
		return services.Wrap(services.ErrValidation, "extraction", "validate inputs",
			fmt.Sprintf("Stored file missing at %s", doc.StoredPath), err)
	}
	logger.Info("starting text extraction",
		logging.String(logging.FieldFilename, doc.OriginalFilename),
		logging.String("mime_type", doc.MimeType))
	return nil
}

func (e *Extractor) Execute(ctx context.Context, doc *queue.Document) error {
	logger := logging.WithContext(ctx, e.logger)

	if doc.Title == "" {
		doc.Title = titleFromFilename(doc.OriginalFilename)
	}

	var (
		text   string
		method queue.ExtractionMethod
		pages  int
		err    error
	)

	switch {
	case isPDF(doc):
		text, method, pages, err = e.extractPDF(ctx, doc, logger)
	case isImage(doc):
		doc.SetProgress("Extracting", "Recognizing image text", 30)
		text, err = e.recognizeImage(ctx, doc.StoredPath)
		method = queue.ExtractionOCR
		pages = 1
	default:
		return services.Wrap(services.ErrPermanent, "extraction", "detect type",
			fmt.Sprintf("Unsupported document type %q", doc.MimeType), nil)
	}
	if err != nil {
		return err
	}

	doc.ExtractionMethod = method
	doc.PageCount = pages
	doc.ExtractedText = normalizeText(text)

	if countTextRunes(doc.ExtractedText) == 0 {
		doc.SetProgressComplete("Extracting", "No recognizable text found")
		return services.Wrap(services.ErrPermanent, "extraction", "collect text",
			"No recognizable text in document; nothing downstream can process it", nil)
	}

	doc.SetProgressComplete("Extracting", fmt.Sprintf("Extracted %d characters (%s)", len(doc.ExtractedText), method))
	logger.Info("text extraction completed",
		logging.String("method", string(method)),
		logging.Int("page_count", pages),
		logging.Int("characters", len(doc.ExtractedText)))
	return nil
}

func (e *Extractor) extractPDF(ctx context.Context, doc *queue.Document, logger *slog.Logger) (string, queue.ExtractionMethod, int, error) {
	pages := 0
	if e.pageCount != nil {
		if count, err := e.pageCount(doc.StoredPath); err == nil {
			pages = count
		} else {
			logger.Debug("page count unavailable", logging.Error(err))
		}
	}

	doc.SetProgress("Extracting", "Reading embedded text layer", 10)
	native, nativeErr := e.nativeText(ctx, doc.StoredPath)
	if nativeErr != nil {
		logger.Warn("native text extraction failed; falling back to OCR", logging.Error(nativeErr))
	}

	threshold := e.cfg.OCR.NativeTextThreshold
	if nativeErr == nil && countTextRunes(native) >= threshold {
		return native, queue.ExtractionNative, pages, nil
	}

	doc.SetProgress("Extracting", "Running OCR on rendered pages", 30)
	logger.Info("text layer below threshold; running OCR",
		logging.Int("native_characters", countTextRunes(native)),
		logging.Int("threshold", threshold))

	ocrText, ocrPages, err := e.ocrPDF(ctx, doc.StoredPath, logger)
	if err != nil {
		return "", "", 0, err
	}
	if pages == 0 {
		pages = ocrPages
	}
	return ocrText, queue.ExtractionOCR, pages, nil
}

func (e *Extractor) nativeText(ctx context.Context, path string) (string, error) {
	output, err := e.runner.Output(ctx, e.cfg.PDFToTextBinary(), "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", services.Wrap(toolFailureMarker(err), "extraction", "pdftotext",
			"Native PDF text extraction failed", err)
	}
	return string(output), nil
}

// HealthCheck verifies the external extraction binaries are installed.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "extractor"
	for _, binary := range []string{e.cfg.PDFToTextBinary(), e.cfg.PDFToPPMBinary(), e.cfg.TesseractBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
		}
	}
	return stage.Healthy(name)
}

func isPDF(doc *queue.Document) bool {
	if strings.EqualFold(strings.TrimSpace(doc.MimeType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.StoredPath), ".pdf")
}

func isImage(doc *queue.Document) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(doc.MimeType)), "image/")
}

func titleFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

// normalizeText collapses Windows line endings and trims trailing whitespace
// per line while keeping page separators intact.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func countTextRunes(text string) int {
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}

var errNoPagesRendered = errors.New("no pages rendered")
