package services_test

import (
	"errors"
	"strings"
	"testing"

	"docket/internal/services"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Class
	}{
		{"transient", services.Wrap(services.ErrTransient, "embedding", "embed", "server busy", nil), services.ClassTransient},
		{"timeout", services.Wrap(services.ErrTimeout, "classification", "generate", "deadline", nil), services.ClassTransient},
		{"external tool", services.Wrap(services.ErrExternalTool, "extraction", "pdftotext", "exit 1", nil), services.ClassTransient},
		{"permanent", services.Wrap(services.ErrPermanent, "extraction", "read", "corrupt file", nil), services.ClassPermanent},
		{"validation", services.Wrap(services.ErrValidation, "ingest", "check", "not a pdf", nil), services.ClassPermanent},
		{"configuration", services.Wrap(services.ErrConfiguration, "embedding", "init", "bad dimensions", nil), services.ClassPermanent},
		{"not found", services.Wrap(services.ErrNotFound, "queue", "load", "missing", nil), services.ClassPermanent},
		{"degraded", services.Wrap(services.ErrDegraded, "thumbnail", "render", "skipped", nil), services.ClassDegraded},
		{"unknown defaults transient", errors.New("boom"), services.ClassTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyPredicates(t *testing.T) {
	if services.IsTransient(nil) || services.IsPermanent(nil) || services.IsDegraded(nil) {
		t.Fatal("nil error should match no class predicate")
	}
	if !services.IsTransient(services.Wrap(services.ErrTransient, "s", "op", "", nil)) {
		t.Fatal("expected transient predicate to match")
	}
	if !services.IsPermanent(services.Wrap(services.ErrPermanent, "s", "op", "", nil)) {
		t.Fatal("expected permanent predicate to match")
	}
	if !services.IsDegraded(services.Wrap(services.ErrDegraded, "s", "op", "", nil)) {
		t.Fatal("expected degraded predicate to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("pdftotext exited with status 1")
	err := services.Wrap(services.ErrExternalTool, "extraction", "pdftotext", "conversion failed", cause)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected marker to survive wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to survive wrapping")
	}
	if !strings.Contains(err.Error(), "extraction") || !strings.Contains(err.Error(), "conversion failed") {
		t.Fatalf("expected stage context in message, got %q", err.Error())
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "embedding", "embed", "oops", nil)
	if services.Classify(err) != services.ClassTransient {
		t.Fatalf("expected nil marker to classify transient, got %v", services.Classify(err))
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrPermanent, "extraction", "read", "corrupt header", nil)
	detail := services.Details(err)
	if strings.Contains(detail, "permanent failure") {
		t.Fatalf("expected marker stripped from details, got %q", detail)
	}
	if !strings.Contains(detail, "corrupt header") {
		t.Fatalf("expected message in details, got %q", detail)
	}

	if services.Details(nil) != "" {
		t.Fatal("expected empty details for nil error")
	}
}
