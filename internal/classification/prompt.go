package classification

import (
	"fmt"
	"strings"

	"docket/internal/queue"
)

type knownLabels struct {
	Tags           []string
	Correspondents []string
	DocumentTypes  []string
}

func systemPrompt(known knownLabels) string {
	var b strings.Builder
	b.WriteString("You are a document classification assistant for a personal document archive.\n")
	b.WriteString("Analyze the document and respond with a single JSON object using exactly these keys:\n")
	b.WriteString(`{"title": string, "correspondent": string, "document_type": string, "tags": [string], "custom_fields": {string: string}}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- title: a short human-readable title for the document\n")
	b.WriteString("- correspondent: the company or person the document is from, empty string if unknown\n")
	b.WriteString("- document_type: invoice, receipt, contract, letter, statement, or a similar category\n")
	b.WriteString("- tags: up to 10 topical keywords\n")
	b.WriteString("- custom_fields: values such as invoice_number, iban, amount, date when present\n")
	b.WriteString("- prefer existing labels over inventing new ones\n")
	b.WriteString("- respond with JSON only, no prose\n")

	writeLabelList(&b, "Existing tags", known.Tags)
	writeLabelList(&b, "Existing correspondents", known.Correspondents)
	writeLabelList(&b, "Existing document types", known.DocumentTypes)
	return b.String()
}

func userPrompt(doc *queue.Document, text string) string {
	return fmt.Sprintf("Filename: %s\n\nDocument text:\n%s", doc.OriginalFilename, text)
}

func visionPrompt(doc *queue.Document) string {
	return fmt.Sprintf("Filename: %s\n\nNo text could be extracted from this document. Classify it from the attached image.", doc.OriginalFilename)
}

func writeLabelList(b *strings.Builder, heading string, names []string) {
	if len(names) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, name := range names {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
}
