package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"docket/internal/config"
	"docket/internal/fileutil"
	"docket/internal/logging"
	"docket/internal/queue"
	"docket/internal/services"
	"docket/internal/stage"
)

// renderDPI keeps thumbnails small; full OCR rendering uses the configured DPI.
const renderDPI = 150

type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return output, err
}

// Thumbnailer renders a preview image for the document. Failures never fail
// the document; a missing thumbnail is cosmetic.
type Thumbnailer struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	runner commandRunner

	trimFirstPage func(src, dst string) error
}

// NewThumbnailer constructs the thumbnail stage handler using default dependencies.
func NewThumbnailer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Thumbnailer {
	return newThumbnailer(cfg, store, logger, execCommandRunner{})
}

func newThumbnailer(cfg *config.Config, store *queue.Store, logger *slog.Logger, runner commandRunner) *Thumbnailer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "thumbnailer"))
	}
	return &Thumbnailer{
		cfg:    cfg,
		store:  store,
		logger: stageLogger,
		runner: runner,
		trimFirstPage: func(src, dst string) error {
			return api.TrimFile(src, dst, []string{"1"}, nil)
		},
	}
}

func (t *Thumbnailer) Prepare(ctx context.Context, doc *queue.Document) error {
	doc.InitProgress("Thumbnailing", "Preparing thumbnail rendering")
	return nil
}

func (t *Thumbnailer) Execute(ctx context.Context, doc *queue.Document) error {
	logger := logging.WithContext(ctx, t.logger)

	if strings.TrimSpace(doc.StoredPath) == "" {
		return services.Wrap(services.ErrDegraded, "thumbnail", "validate inputs",
			"Document has no stored file; skipping thumbnail", nil)
	}
	if err := os.MkdirAll(t.cfg.Paths.ThumbnailDir, 0o755); err != nil {
		return services.Wrap(services.ErrDegraded, "thumbnail", "ensure directory",
			"Thumbnail directory unavailable", err)
	}

	target := filepath.Join(t.cfg.Paths.ThumbnailDir, doc.ID+".png")
	doc.SetProgress("Thumbnailing", "Rendering preview", 30)

	var err error
	if strings.EqualFold(strings.TrimSpace(doc.MimeType), "application/pdf") ||
		strings.EqualFold(filepath.Ext(doc.StoredPath), ".pdf") {
		err = t.renderPDF(ctx, doc.StoredPath, target)
	} else {
		err = fileutil.CopyFile(doc.StoredPath, target)
	}
	if err != nil {
		return services.Wrap(services.ErrDegraded, "thumbnail", "render preview",
			"Thumbnail rendering failed; continuing without preview", err)
	}

	doc.ThumbnailPath = target
	doc.SetProgressComplete("Thumbnailing", "Thumbnail rendered")
	logger.Info("thumbnail rendered", logging.String("thumbnail_path", target))
	return nil
}

// renderPDF trims the document to its first page and renders that page as a
// single PNG. Trimming first keeps pdftoppm from touching the whole file.
func (t *Thumbnailer) renderPDF(ctx context.Context, src, target string) error {
	tempDir, err := os.MkdirTemp("", "docket-thumb-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	firstPage := filepath.Join(tempDir, "first.pdf")
	renderSource := src
	if trimErr := t.trimFirstPage(src, firstPage); trimErr == nil {
		renderSource = firstPage
	}

	prefix := filepath.Join(tempDir, "thumb")
	if _, err := t.runner.Output(ctx, t.cfg.PDFToPPMBinary(),
		"-png", "-singlefile", "-f", "1", "-l", "1", "-r", strconv.Itoa(renderDPI),
		renderSource, prefix); err != nil {
		return fmt.Errorf("render first page: %w", err)
	}

	rendered := prefix + ".png"
	if _, err := os.Stat(rendered); err != nil {
		return fmt.Errorf("rendered thumbnail missing: %w", err)
	}
	return fileutil.MoveFile(rendered, target)
}

// HealthCheck verifies the rendering binary is installed.
func (t *Thumbnailer) HealthCheck(ctx context.Context) stage.Health {
	const name = "thumbnailer"
	if _, err := exec.LookPath(t.cfg.PDFToPPMBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", t.cfg.PDFToPPMBinary()))
	}
	return stage.Healthy(name)
}
